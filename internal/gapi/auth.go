package gapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultScopes are requested on every sign-in: per-file Drive access,
// spreadsheet read/write, and the OpenID profile used by whoami.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/spreadsheets",
	"openid",
	"email",
	"profile",
}

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// TokenProvider acquires a fresh bearer token. Implementations may block on
// user interaction; a dismissed or denied prompt yields *AuthError.
type TokenProvider interface {
	AcquireToken(ctx context.Context) (*oauth2.Token, error)
}

// OAuthConfig builds the oauth2.Config for a Google "desktop app" client.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       DefaultScopes,
		Endpoint:     google.Endpoint,
	}
}

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// BrowserProvider runs the authorization code + PKCE flow with a loopback
// redirect:
//  1. Binds a localhost HTTP server on a random port
//  2. Opens the browser to Google's consent screen
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for tokens using the PKCE verifier
type BrowserProvider struct {
	cfg     *oauth2.Config
	openURL func(string) error
	logger  *slog.Logger
}

// NewBrowserProvider creates a provider. openURL is called with the consent
// URL; if it fails the URL is printed to stderr for manual opening.
func NewBrowserProvider(cfg *oauth2.Config, openURL func(string) error, logger *slog.Logger) *BrowserProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &BrowserProvider{cfg: cfg, openURL: openURL, logger: logger}
}

// AcquireToken blocks until the user completes or denies consent, or ctx is canceled.
func (p *BrowserProvider) AcquireToken(ctx context.Context) (*oauth2.Token, error) {
	p.logger.Info("starting browser auth flow (authorization code + PKCE)")

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, p.logger)
	if err != nil {
		return nil, &AuthError{Reason: "starting callback server", Err: err}
	}

	defer shutdownCallbackServer(srv, p.logger)

	// Work on a copy: RedirectURL depends on the port of this attempt.
	cfg := *p.cfg
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, &AuthError{Reason: "generating state token", Err: err}
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	launchBrowser(authURL, p.openURL, p.logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	p.logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &AuthError{Reason: "token exchange", Err: err}
	}

	p.logger.Info("token exchange successful", slog.Time("expiry", tok.Expiry))

	return tok, nil
}

// startCallbackServer binds to 127.0.0.1:0 and starts an HTTP server with the
// given mux. Returns the server and the chosen port.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("listener address is not TCP")
	}

	port := tcpAddr.Port
	logger.Debug("callback server listening", slog.Int("port", port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: &AuthError{Reason: "callback server", Err: serveErr}}:
			default:
			}
		}
	}()

	return srv, port, nil
}

// registerCallbackHandler adds the callback route to the mux.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})
}

// handleOAuthCallback validates the state, extracts the code, and sends the
// result. Only the first result is delivered; later hits (favicon, reloads)
// are answered but dropped.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	send := func(res callbackResult) {
		select {
		case resultCh <- res:
		default:
		}
	}

	q := r.URL.Query()

	if q.Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		send(callbackResult{err: &AuthError{Reason: "OAuth2 state mismatch (possible CSRF)"}})

		return
	}

	// access_denied when the user dismisses the consent screen.
	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		send(callbackResult{err: &AuthError{Reason: errParam}})

		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		send(callbackResult{err: &AuthError{Reason: "callback missing authorization code"}})

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Conectado</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	send(callbackResult{code: code})
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL. If it fails, prints the URL
// to stderr so the user can copy-paste it.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", &AuthError{Reason: "browser auth canceled", Err: ctx.Err()}
	}
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// RefreshProvider re-acquires an access token from a stored refresh token
// without user interaction. It is only used when a caller explicitly
// re-authenticates; the API clients never refresh on their own.
type RefreshProvider struct {
	cfg          *oauth2.Config
	refreshToken string
	logger       *slog.Logger
}

// NewRefreshProvider creates a provider bound to refreshToken.
func NewRefreshProvider(cfg *oauth2.Config, refreshToken string, logger *slog.Logger) *RefreshProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshProvider{cfg: cfg, refreshToken: refreshToken, logger: logger}
}

// AcquireToken exchanges the refresh token for a new access token. The
// returned token keeps the original refresh token when Google omits it.
func (p *RefreshProvider) AcquireToken(ctx context.Context) (*oauth2.Token, error) {
	if p.refreshToken == "" {
		return nil, &AuthError{Reason: "no refresh token (sign in again)"}
	}

	p.logger.Info("refreshing access token")

	tok, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}).Token()
	if err != nil {
		return nil, &AuthError{Reason: "token refresh", Err: err}
	}

	p.logger.Info("access token refreshed", slog.Time("expiry", tok.Expiry))

	return tok, nil
}
