package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"vcfgate/internal/apperr"
	"vcfgate/internal/observability/logging"
)

// SessionCookieName is the cookie the gateway issues session handles under.
const SessionCookieName = "vcfgate_session"

// Authenticator is the slice of the upstream client the gateway needs for
// logins.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password, origin string) (string, error)
}

// Gateway orchestrates login against the upstream and session resolution for
// protected calls. It has no failure modes of its own: upstream and store
// errors propagate unchanged.
type Gateway struct {
	upstream Authenticator
	sessions *Store
	logger   *slog.Logger
}

// NewGateway wires the upstream authenticator and session store together.
func NewGateway(upstream Authenticator, sessions *Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{upstream: upstream, sessions: sessions, logger: logger}
}

// Login authenticates the credentials against the upstream and, on success,
// creates a local session owning the upstream token. It returns the session
// handle and the TTL in seconds.
func (g *Gateway) Login(ctx context.Context, username, password, origin string) (string, int, error) {
	token, err := g.upstream.Authenticate(ctx, username, password, origin)
	if err != nil {
		return "", 0, err
	}
	handle, ttl, err := g.sessions.Create(token, origin)
	if err != nil {
		return "", 0, err
	}
	g.logger.Info("session established",
		"username", username,
		"session", logging.MaskSecret(handle),
		"ttl_seconds", ttl)
	return handle, ttl, nil
}

// Resolve extracts a candidate session handle from the request and resolves
// it against the store. The session cookie takes precedence over a bearer
// Authorization header. A missing candidate yields AUTH_REQUIRED; an unknown
// or expired handle yields INVALID_SESSION.
func (g *Gateway) Resolve(r *http.Request) (Session, error) {
	handle := ExtractHandle(r)
	if handle == "" {
		return Session{}, apperr.New(apperr.CodeAuthRequired, "login required")
	}
	session, ok := g.sessions.Get(handle)
	if !ok {
		return Session{}, apperr.New(apperr.CodeInvalidSession, "session expired, please login again")
	}
	return session, nil
}

// Invalidate removes the session for the provided handle, if any.
func (g *Gateway) Invalidate(handle string) {
	if handle == "" {
		return
	}
	g.sessions.Invalidate(handle)
	g.logger.Info("session invalidated", "session", logging.MaskSecret(handle))
}

// ExtractHandle pulls the candidate session handle from the request: the
// session cookie first, then a bearer Authorization header.
func ExtractHandle(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
