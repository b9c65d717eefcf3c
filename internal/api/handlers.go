// Package api implements the HTTP boundary of the gateway: login, session
// introspection and logout, the proxied virtual-center listing, and health.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vcfgate/internal/apperr"
	"vcfgate/internal/auth"
)

// VirtualCenterLister is the slice of the upstream client the boundary needs
// for proxied reads.
type VirtualCenterLister interface {
	FetchVirtualCenters(ctx context.Context, token, origin string) ([]map[string]any, error)
}

// Handler carries the boundary dependencies. All fields must be set before
// the handler serves requests, except SessionCookiePolicy which falls back to
// its defaults.
type Handler struct {
	Gateway             *auth.Gateway
	Upstream            VirtualCenterLister
	Logger              *slog.Logger
	SessionCookiePolicy SessionCookiePolicy
}

// NewHandler constructs a Handler with the default cookie policy.
func NewHandler(gateway *auth.Gateway, upstream VirtualCenterLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Gateway:             gateway,
		Upstream:            upstream,
		Logger:              logger,
		SessionCookiePolicy: DefaultSessionCookiePolicy(),
	}
}

// Health reports constant liveness. It has no dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool `json:"success"`
	ExpiresIn int  `json:"expiresIn"`
}

// Login authenticates against the upstream and issues a session handle as an
// HttpOnly cookie with Max-Age matching the session TTL.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r.Method, "POST")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, err.Error()))
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, apperr.New(apperr.CodeInvalidRequest, "username and password are required"))
		return
	}

	handle, ttl, err := h.Gateway.Login(r.Context(), req.Username, req.Password, req.BaseURL)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, r, handle, ttl)
	writeJSON(w, http.StatusOK, loginResponse{Success: true, ExpiresIn: ttl})
}

type sessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Session reports whether the presented handle is still valid (GET) or
// invalidates it (DELETE).
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		session, err := h.Gateway.Resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, ExpiresAt: session.ExpiresAt.UTC()})
	case http.MethodDelete:
		h.Gateway.Invalidate(auth.ExtractHandle(r))
		h.clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w, r.Method, "GET, DELETE")
	}
}

// VirtualCenters resolves the caller's session and proxies the upstream
// virtual-center listing, reshaping each record per the field fallbacks.
func (h *Handler) VirtualCenters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r.Method, "GET")
		return
	}

	session, err := h.Gateway.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.Upstream.FetchVirtualCenters(r.Context(), session.UpstreamToken, session.Origin)
	if err != nil {
		// A 401 from the upstream does not evict the local session; the
		// caller decides whether to re-authenticate.
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, virtualCentersResponse{Items: normalizeVirtualCenters(records)})
}
