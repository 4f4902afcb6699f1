package expediente

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/expedientes-go/internal/gapi"
)

// ErrSignedOut is returned when an operation needs a signed-in session.
var ErrSignedOut = errors.New("expediente: not signed in")

// Session holds the signed-in state of one user: the bearer token, the
// cached profile and the cached listing. A Session is created signed out;
// SignIn populates it and SignOut or Invalidate reset it. The token is only
// ever replaced by an explicit SignIn.
type Session struct {
	mu      sync.RWMutex
	token   *oauth2.Token
	profile gapi.Profile
	cache   []Expediente
	cached  bool
	logger  *slog.Logger
}

// NewSession creates a signed-out session.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{logger: logger}
}

// SignIn installs a token and the profile of its owner. Any cached listing
// from a previous user is discarded.
func (s *Session) SignIn(tok *oauth2.Token, profile gapi.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = tok
	s.profile = profile
	s.cache = nil
	s.cached = false

	s.logger.Debug("session signed in", slog.String("email", profile.Email))
}

// SetProfile replaces the cached profile without touching the token.
func (s *Session) SetProfile(profile gapi.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile = profile
}

// SignOut clears the token, profile and cached listing. No network call is
// made and the token is not revoked.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.logger.Debug("session signed out")
}

// Invalidate signs the session out after the identity provider rejected the
// token (HTTP 401).
func (s *Session) Invalidate(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return
	}

	s.reset()

	attrs := []any{}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}

	s.logger.Warn("session invalidated, sign in again", attrs...)
}

func (s *Session) reset() {
	s.token = nil
	s.profile = gapi.Profile{}
	s.cache = nil
	s.cached = false
}

// SignedIn reports whether the session holds a token.
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token != nil
}

// Token returns the current access token. It satisfies gapi.TokenSource.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return "", ErrSignedOut
	}

	return s.token.AccessToken, nil
}

// OAuthToken returns the full token for persisting, or nil when signed out.
func (s *Session) OAuthToken() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Profile returns the cached profile of the signed-in user.
func (s *Session) Profile() (gapi.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return gapi.Profile{}, ErrSignedOut
	}

	return s.profile, nil
}

// Cached returns the listing from the last successful List without any
// network call. It returns ErrSignedOut after sign-out and an empty slice
// when nothing has been loaded yet.
func (s *Session) Cached() ([]Expediente, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, ErrSignedOut
	}

	if !s.cached {
		return []Expediente{}, nil
	}

	return slices.Clone(s.cache), nil
}

// setCache replaces the listing. It is a no-op when signed out, so a load
// that finishes after sign-out does not resurrect stale data.
func (s *Session) setCache(items []Expediente) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return
	}

	s.cache = slices.Clone(items)
	s.cached = true
}

// addCached appends a newly created case file to a loaded listing.
func (s *Session) addCached(e Expediente) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil || !s.cached {
		return
	}

	s.cache = append(s.cache, e)
}
