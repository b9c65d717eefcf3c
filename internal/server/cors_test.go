package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"vcfgate/internal/apperr"
)

func corsTestHandler(t *testing.T, origins ...string) http.Handler {
	t.Helper()
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigins: origins})
	if err != nil {
		t.Fatalf("newCORSPolicy returned error: %v", err)
	}
	return corsMiddleware(policy, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := corsTestHandler(t, "https://ui.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("expected Vary: Origin, got %q", got)
	}
}

func TestCORSBlocksUnknownOrigin(t *testing.T) {
	handler := corsTestHandler(t, "https://ui.example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if got := decodeErrorBody(t, rec); got != apperr.CodeOriginNotAllowed {
		t.Fatalf("expected ORIGIN_NOT_ALLOWED, got %s", got)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers on blocked request")
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := corsTestHandler(t, "http://localhost:3000")

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, DELETE, OPTIONS" {
		t.Fatalf("unexpected allowed methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("expected requested headers echoed, got %q", got)
	}
}

func TestCORSPassesRequestsWithoutOrigin(t *testing.T) {
	handler := corsTestHandler(t, "https://ui.example.com")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers without an Origin")
	}
}

func TestCORSAllowsSameOriginFallback(t *testing.T) {
	handler := corsTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Host = "gateway.example.com"
	req.Header.Set("Origin", "http://gateway.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected same-origin request to pass, got %d", rec.Code)
	}
}

func TestNewCORSPolicyRejectsMalformedOrigins(t *testing.T) {
	if _, err := newCORSPolicy(CORSConfig{AllowedOrigins: []string{"example.com"}}); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"https://UI.Example.COM", "https://ui.example.com"},
		{"http://localhost:3000", "http://localhost:3000"},
	}
	for _, tc := range tests {
		got, err := normalizeOrigin(tc.in)
		if err != nil {
			t.Fatalf("normalizeOrigin(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("normalizeOrigin(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
