package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/expedientes-go/internal/config"
	"github.com/tonimelisma/expedientes-go/internal/expediente"
	"github.com/tonimelisma/expedientes-go/internal/gapi"
	"github.com/tonimelisma/expedientes-go/internal/ledger"
	"github.com/tonimelisma/expedientes-go/internal/tokenfile"
)

// apiEndpoints returns the Google API base URLs. Tests point it at a fake.
var apiEndpoints = gapi.DefaultEndpoints

// errNotLoggedIn is shown when no saved session exists.
var errNotLoggedIn = errors.New("not logged in, run 'expedientes login' first")

// AppSession holds the signed-in session and the clients built from the
// resolved config for one command.
type AppSession struct {
	Session   *expediente.Session
	Client    *gapi.Client
	Service   *expediente.Service
	Ledger    *ledger.Ledger
	TokenPath string

	logger *slog.Logger
}

// loadSession restores the saved session from the token file. An expired
// token is renewed once through the stored refresh token and saved again.
func loadSession(ctx context.Context, oauthCfg *oauth2.Config, tokenPath string, logger *slog.Logger) (*expediente.Session, error) {
	if tokenPath == "" {
		return nil, fmt.Errorf("cannot determine token path")
	}

	tf, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, errNotLoggedIn
	}

	tok := tf.Token
	if !tok.Valid() && tok.RefreshToken != "" {
		logger.Debug("access token expired, refreshing")

		p := gapi.NewRefreshProvider(oauthCfg, tok.RefreshToken, logger)

		fresh, err := p.AcquireToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("renewing session: %w", err)
		}

		tf.Token = fresh
		if err := tokenfile.Save(tokenPath, tf); err != nil {
			return nil, err
		}

		tok = fresh
	}

	sess := expediente.NewSession(logger)
	sess.SignIn(tok, gapi.Profile{Email: tf.Profile.Email, Name: tf.Profile.Name})

	return sess, nil
}

// oauthConfig builds the OAuth client from the resolved config.
func oauthConfig(cfg *config.Config) *oauth2.Config {
	return gapi.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
}

// newHTTPClient returns an HTTP client honoring request_timeout. Zero means
// no timeout.
func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	timeout, err := cfg.Network.Timeout()
	if err != nil {
		return nil, err
	}

	return &http.Client{Timeout: timeout}, nil
}

// newAPIClient builds the Google API client shared by every component of
// one command, so pacing applies across all of them.
func newAPIClient(cfg *config.Config, token gapi.TokenSource, logger *slog.Logger) (*gapi.Client, error) {
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	opts := []gapi.Option{gapi.WithMaxRetries(cfg.Network.MaxRetries)}

	if cfg.Network.RequestsPerSecond > 0 {
		opts = append(opts, gapi.WithRateLimit(cfg.Network.RequestsPerSecond, cfg.Network.Burst))
	}

	if cfg.Network.UserAgent != "" {
		opts = append(opts, gapi.WithUserAgent(cfg.Network.UserAgent))
	}

	return gapi.NewClient(apiEndpoints(), httpClient, token, logger, opts...), nil
}

// NewAppSession loads the saved session and wires the workflow service.
// Commands that touch the index need a sheet ID.
func NewAppSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*AppSession, error) {
	tokenPath := config.DefaultTokenPath()

	sess, err := loadSession(ctx, oauthConfig(cfg), tokenPath, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Google.SheetID == "" {
		return nil, fmt.Errorf("no index spreadsheet configured: set sheet_id, %s or --sheet", config.EnvSheetID)
	}

	client, err := newAPIClient(cfg, sess, logger)
	if err != nil {
		return nil, err
	}

	app := &AppSession{
		Session:   sess,
		Client:    client,
		TokenPath: tokenPath,
		logger:    logger,
	}

	opts := []expediente.Option{
		expediente.WithParentFolder(cfg.Google.ParentFolderID),
		expediente.WithParallelUploads(cfg.Workflow.ParallelUploads),
		expediente.WithCleanupOnFailure(cfg.Workflow.CleanupOnFailure),
	}

	if cfg.Workflow.RecordOrphans {
		l, err := ledger.Open(ctx, config.DefaultLedgerPath(), logger)
		if err != nil {
			return nil, err
		}

		app.Ledger = l
		opts = append(opts, expediente.WithOrphanRecorder(l))
	}

	app.Service = expediente.NewService(
		gapi.NewSheetIndex(client, cfg.Google.SheetID, cfg.Google.SheetRange),
		gapi.NewDrive(client),
		sess,
		logger,
		opts...,
	)

	return app, nil
}

// Close releases the ledger and forgets the saved token when the session
// was invalidated by a 401 during the command.
func (a *AppSession) Close() error {
	var errs []error

	if a.Ledger != nil {
		errs = append(errs, a.Ledger.Close())
	}

	if !a.Session.SignedIn() {
		if _, err := tokenfile.Remove(a.TokenPath); err != nil {
			errs = append(errs, err)
		} else {
			a.logger.Info("saved session removed after rejection", slog.String("path", a.TokenPath))
		}
	}

	return errors.Join(errs...)
}

// wrapAuthErr adds a hint to errors caused by a rejected token.
func wrapAuthErr(err error) error {
	if errors.Is(err, gapi.ErrUnauthorized) || errors.Is(err, expediente.ErrSignedOut) {
		return fmt.Errorf("%w (session expired, run 'expedientes login')", err)
	}

	return err
}

// tokenExpiry formats a token expiry for display.
func tokenExpiry(tok *oauth2.Token) string {
	if tok == nil || tok.Expiry.IsZero() {
		return "unknown"
	}

	return tok.Expiry.Local().Format(time.DateTime)
}
