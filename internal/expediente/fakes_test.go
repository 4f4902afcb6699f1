package expediente

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/expedientes-go/internal/gapi"
)

// fakeIndex is an in-memory Index.
type fakeIndex struct {
	mu        sync.Mutex
	rows      [][]string
	appends   int
	reads     int
	appendErr error
	readErr   error
}

func (f *fakeIndex) Append(_ context.Context, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.appends++
	if f.appendErr != nil {
		return f.appendErr
	}

	f.rows = append(f.rows, slices.Clone(row))

	return nil
}

func (f *fakeIndex) ReadAll(_ context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}

	out := make([][]string, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, slices.Clone(r))
	}

	return out, nil
}

// fakeStore is an in-memory Store. failUpload makes the k-th upload
// (1-based) fail; zero never fails.
type fakeStore struct {
	mu            sync.Mutex
	folderErr     error
	uploadErr     error
	failUpload    int
	deleteErr     error
	folders       []string
	folderParents []string
	attempts      []string
	uploaded      []string
	deleted       []string
	blockOthers   bool
}

const fakeFolderID = "fake-folder-id"

func (f *fakeStore) CreateFolder(_ context.Context, name, parentID string) (*gapi.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.folders = append(f.folders, name)
	f.folderParents = append(f.folderParents, parentID)

	if f.folderErr != nil {
		return nil, f.folderErr
	}

	return &gapi.Folder{ID: fakeFolderID, Name: name}, nil
}

func (f *fakeStore) UploadFile(
	ctx context.Context, parentID, name, mimeType string, r io.Reader, _ int64,
) (*gapi.File, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, name)
	n := len(f.attempts)
	fail := f.failUpload != 0 && n == f.failUpload
	block := f.blockOthers && !fail
	f.mu.Unlock()

	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}

	if fail {
		return nil, f.uploadErr
	}

	// Parallel tests park non-failing uploads until the group cancels them.
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploaded = append(f.uploaded, name)

	return &gapi.File{
		ID:       fmt.Sprintf("file-%d", n),
		Name:     name,
		MimeType: mimeType,
		Link:     "https://drive.google.com/file/d/file/view?parent=" + parentID,
	}, nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, id)

	return f.deleteErr
}

// fakeOrphans records orphans in memory.
type fakeOrphans struct {
	mu      sync.Mutex
	orphans []Orphan
}

func (f *fakeOrphans) RecordOrphan(_ context.Context, o Orphan) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.orphans = append(f.orphans, o)

	return nil
}

// fixedClock returns a clock frozen at ms Unix milliseconds.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

// signedInSession returns a session holding a test token.
func signedInSession(t *testing.T) *Session {
	t.Helper()

	s := NewSession(slog.Default())
	s.SignIn(&oauth2.Token{AccessToken: "test-token"}, gapi.Profile{Email: "ana@example.com", Name: "Ana"})

	return s
}

// newTestService wires a service to fresh fakes with a frozen clock.
func newTestService(t *testing.T, opts ...Option) (*Service, *fakeIndex, *fakeStore, *Session) {
	t.Helper()

	idx := &fakeIndex{}
	store := &fakeStore{}
	sess := signedInSession(t)

	opts = append([]Option{WithIDGenerator(NewIDGenerator(fixedClock(1714550400000)))}, opts...)
	svc := NewService(idx, store, sess, slog.Default(), opts...)

	return svc, idx, store, sess
}

// attachments builds n small in-memory attachments named a1.pdf..an.pdf.
func attachments(n int) []Attachment {
	out := make([]Attachment, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, BytesAttachment(fmt.Sprintf("a%d.pdf", i), []byte("content"), ""))
	}

	return out
}

func validInput() Input {
	return Input{Codigo: "C100", Nombre: "Juan", Asunto: "Revisión", Fecha: "2024-05-01"}
}
