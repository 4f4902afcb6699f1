package expediente

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/expedientes-go/internal/gapi"
)

// MaxParallelUploads bounds the upload fan-out.
const MaxParallelUploads = 8

// Index is the spreadsheet that records one row per case file.
type Index interface {
	Append(ctx context.Context, row []string) error
	ReadAll(ctx context.Context) ([][]string, error)
}

// Store holds the case folders and their files.
type Store interface {
	CreateFolder(ctx context.Context, name, parentID string) (*gapi.Folder, error)
	UploadFile(ctx context.Context, parentID, name, mimeType string, r io.Reader, size int64) (*gapi.File, error)
	DeleteItem(ctx context.Context, id string) error
}

// OrphanRecorder journals case files that were left half-created.
type OrphanRecorder interface {
	RecordOrphan(ctx context.Context, o Orphan) error
}

// Stage names the step of Create that failed after the folder existed.
type Stage string

// Failure stages.
const (
	StageUpload Stage = "upload"
	StageAppend Stage = "append"
)

// Orphan describes a folder that exists in the store without an index row.
type Orphan struct {
	ExpID    string
	Codigo   string
	FolderID string
	Stage    Stage
	Uploaded int
	Err      string
}

// PartialError reports a Create that failed after its folder was created.
// The folder and Uploaded files remain in the store unless CleanedUp is set.
type PartialError struct {
	Stage     Stage
	ExpID     string
	FolderID  string
	Uploaded  []gapi.File
	CleanedUp bool
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("expediente: %s failed for %s (folder %s, %d file(s) uploaded): %v",
		e.Stage, e.ExpID, e.FolderID, len(e.Uploaded), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a successful Create.
type Result struct {
	ExpID    string      `json:"expId"`
	FolderID string      `json:"folderId"`
	Uploaded []gapi.File `json:"uploaded"`
}

// FolderName returns the store folder name for a case file.
func FolderName(codigo, expID string) string {
	return codigo + "_" + expID
}

// Service runs the case-file workflow against an index and a store on behalf
// of one session.
type Service struct {
	index    Index
	store    Store
	session  *Session
	ids      *IDGenerator
	logger   *slog.Logger
	parentID string
	parallel int
	cleanup  bool
	orphans  OrphanRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithParentFolder creates case folders under parentID instead of the top
// level of the store.
func WithParentFolder(parentID string) Option {
	return func(s *Service) { s.parentID = parentID }
}

// WithParallelUploads sets how many attachments upload at once. 1 uploads
// sequentially in input order.
func WithParallelUploads(n int) Option {
	return func(s *Service) { s.parallel = min(max(n, 1), MaxParallelUploads) }
}

// WithCleanupOnFailure deletes the case folder when a later step fails.
func WithCleanupOnFailure(enabled bool) Option {
	return func(s *Service) { s.cleanup = enabled }
}

// WithOrphanRecorder journals partially created case files.
func WithOrphanRecorder(r OrphanRecorder) Option {
	return func(s *Service) { s.orphans = r }
}

// WithIDGenerator overrides the identifier source.
func WithIDGenerator(g *IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// NewService creates a workflow service.
func NewService(index Index, store Store, session *Session, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		index:    index,
		store:    store,
		session:  session,
		ids:      NewIDGenerator(nil),
		logger:   logger,
		parallel: 1,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create validates in, creates the case folder, uploads the attachments into
// it and appends the index row. A folder failure aborts before anything else
// is written. Upload and append failures return *PartialError and leave the
// folder behind unless cleanup is enabled.
func (s *Service) Create(ctx context.Context, in Input) (*Result, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	if !s.session.SignedIn() {
		return nil, ErrSignedOut
	}

	expID := s.ids.Next()
	logger := s.logger.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("exp_id", expID),
	)

	logger.Info("creating case file",
		slog.String("codigo", in.Codigo),
		slog.Int("attachments", len(in.Attachments)),
	)

	folder, err := s.store.CreateFolder(ctx, FolderName(in.Codigo, expID), s.parentID)
	if err != nil {
		s.checkAuth(err)
		return nil, fmt.Errorf("expediente: creating folder for %s: %w", expID, err)
	}

	logger.Debug("case folder created", slog.String("folder_id", folder.ID))

	uploaded, err := s.uploadAll(ctx, folder.ID, in.Attachments, logger)
	if err != nil {
		return nil, s.fail(ctx, logger, in.Codigo, &PartialError{
			Stage: StageUpload, ExpID: expID, FolderID: folder.ID, Uploaded: uploaded, Err: err,
		})
	}

	exp := Expediente{
		ID:       expID,
		Codigo:   in.Codigo,
		Nombre:   in.Nombre,
		Asunto:   in.Asunto,
		Fecha:    in.Fecha,
		Notas:    in.Notas,
		FolderID: folder.ID,
	}

	if err := s.index.Append(ctx, exp.Row()); err != nil {
		return nil, s.fail(ctx, logger, in.Codigo, &PartialError{
			Stage: StageAppend, ExpID: expID, FolderID: folder.ID, Uploaded: uploaded, Err: err,
		})
	}

	s.session.addCached(exp)

	logger.Info("case file created",
		slog.String("folder_id", folder.ID),
		slog.Int("uploaded", len(uploaded)),
	)

	return &Result{ExpID: expID, FolderID: folder.ID, Uploaded: uploaded}, nil
}

// uploadAll uploads the attachments into folderID. On failure it returns the
// files uploaded so far, in input order, together with the error.
func (s *Service) uploadAll(ctx context.Context, folderID string, atts []Attachment, logger *slog.Logger) ([]gapi.File, error) {
	if s.parallel <= 1 || len(atts) <= 1 {
		uploaded := make([]gapi.File, 0, len(atts))

		for i := range atts {
			f, err := s.uploadOne(ctx, folderID, &atts[i], logger)
			if err != nil {
				return uploaded, err
			}

			uploaded = append(uploaded, *f)
		}

		return uploaded, nil
	}

	return s.uploadParallel(ctx, folderID, atts, logger)
}

// uploadParallel fans uploads out through a bounded errgroup. The first
// failure cancels uploads that have not finished.
func (s *Service) uploadParallel(ctx context.Context, folderID string, atts []Attachment, logger *slog.Logger) ([]gapi.File, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)

	// Each goroutine writes only its own slot.
	results := make([]*gapi.File, len(atts))

	for i := range atts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			f, err := s.uploadOne(gctx, folderID, &atts[i], logger)
			if err != nil {
				return err
			}

			results[i] = f

			return nil
		})
	}

	err := g.Wait()

	uploaded := make([]gapi.File, 0, len(atts))

	for _, f := range results {
		if f != nil {
			uploaded = append(uploaded, *f)
		}
	}

	return uploaded, err
}

func (s *Service) uploadOne(ctx context.Context, folderID string, a *Attachment, logger *slog.Logger) (*gapi.File, error) {
	rc, err := a.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", a.Name, err)
	}
	defer rc.Close()

	f, err := s.store.UploadFile(ctx, folderID, a.Name, a.MimeType, rc, a.Size)
	if err != nil {
		return nil, fmt.Errorf("uploading %q: %w", a.Name, err)
	}

	logger.Debug("attachment uploaded",
		slog.String("name", a.Name),
		slog.String("file_id", f.ID),
	)

	return f, nil
}

// fail handles a failure after the folder exists: it invalidates the session
// on 401, optionally deletes the folder, and journals the orphan when the
// folder is still there.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, codigo string, pe *PartialError) error {
	s.checkAuth(pe.Err)

	logger.Error("case file creation failed",
		slog.String("stage", string(pe.Stage)),
		slog.String("folder_id", pe.FolderID),
		slog.Int("uploaded", len(pe.Uploaded)),
		slog.String("error", pe.Err.Error()),
	)

	// Cleanup and journaling run even if the caller's context was canceled.
	bg := context.WithoutCancel(ctx)

	if s.cleanup && s.session.SignedIn() {
		if err := s.store.DeleteItem(bg, pe.FolderID); err != nil {
			logger.Warn("cleanup of case folder failed",
				slog.String("folder_id", pe.FolderID),
				slog.String("error", err.Error()),
			)
		} else {
			pe.CleanedUp = true
			logger.Info("case folder deleted after failure", slog.String("folder_id", pe.FolderID))
		}
	}

	if !pe.CleanedUp && s.orphans != nil {
		o := Orphan{
			ExpID:    pe.ExpID,
			Codigo:   codigo,
			FolderID: pe.FolderID,
			Stage:    pe.Stage,
			Uploaded: len(pe.Uploaded),
			Err:      pe.Err.Error(),
		}

		if err := s.orphans.RecordOrphan(bg, o); err != nil {
			logger.Warn("recording orphan failed", slog.String("error", err.Error()))
		}
	}

	return pe
}

// checkAuth invalidates the session when err is a 401 from any API.
func (s *Service) checkAuth(err error) {
	if errors.Is(err, gapi.ErrUnauthorized) {
		s.session.Invalidate(err)
	}
}

// List reads the whole index, drops rows without an id, caches the result in
// the session and returns it in index order.
func (s *Service) List(ctx context.Context) ([]Expediente, error) {
	if !s.session.SignedIn() {
		return nil, ErrSignedOut
	}

	rows, err := s.index.ReadAll(ctx)
	if err != nil {
		s.checkAuth(err)
		return nil, fmt.Errorf("expediente: listing: %w", err)
	}

	items := FromRows(rows)
	s.session.setCache(items)

	s.logger.Debug("index loaded",
		slog.Int("rows", len(rows)),
		slog.Int("items", len(items)),
	)

	return items, nil
}

// DeleteFolder removes a case folder from the store. Used to clean up
// orphans; the index is never modified.
func (s *Service) DeleteFolder(ctx context.Context, folderID string) error {
	if !s.session.SignedIn() {
		return ErrSignedOut
	}

	if err := s.store.DeleteItem(ctx, folderID); err != nil {
		s.checkAuth(err)
		return fmt.Errorf("expediente: deleting folder %s: %w", folderID, err)
	}

	return nil
}
