package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vcfgate/internal/apperr"
)

type stubAuthenticator struct {
	token    string
	err      error
	username string
	password string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, username, password, _ string) (string, error) {
	s.username = username
	s.password = password
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func TestGatewayLoginCreatesSession(t *testing.T) {
	upstream := &stubAuthenticator{token: "upstream-token"}
	store := NewStore(time.Minute)
	gateway := NewGateway(upstream, store, nil)

	handle, ttl, err := gateway.Login(context.Background(), "admin", "secret", "")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if handle == "" {
		t.Fatal("expected non-empty handle")
	}
	if ttl != 60 {
		t.Fatalf("expected ttl 60, got %d", ttl)
	}
	if upstream.username != "admin" || upstream.password != "secret" {
		t.Fatalf("credentials not forwarded, got %q/%q", upstream.username, upstream.password)
	}

	session, ok := store.Get(handle)
	if !ok {
		t.Fatal("expected session in store after login")
	}
	if session.UpstreamToken != "upstream-token" {
		t.Fatalf("expected upstream token stored, got %q", session.UpstreamToken)
	}
}

func TestGatewayLoginPropagatesUpstreamError(t *testing.T) {
	wantErr := apperr.New(apperr.CodeInvalidCredentials, "invalid credentials")
	upstream := &stubAuthenticator{err: wantErr}
	store := NewStore(time.Minute)
	gateway := NewGateway(upstream, store, nil)

	if _, _, err := gateway.Login(context.Background(), "admin", "wrong", ""); !errors.Is(err, wantErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("expected no session after failed login")
	}
}

func TestGatewayResolvePrefersCookieOverBearer(t *testing.T) {
	store := NewStore(time.Minute)
	gateway := NewGateway(&stubAuthenticator{token: "tok"}, store, nil)
	handle, _, err := gateway.Login(context.Background(), "admin", "secret", "")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/virtualcenters", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: handle})
	req.Header.Set("Authorization", "Bearer not-a-session")

	session, err := gateway.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if session.Handle != handle {
		t.Fatalf("expected cookie handle %s, got %s", handle, session.Handle)
	}
}

func TestGatewayResolveAcceptsBearerHandle(t *testing.T) {
	store := NewStore(time.Minute)
	gateway := NewGateway(&stubAuthenticator{token: "tok"}, store, nil)
	handle, _, err := gateway.Login(context.Background(), "admin", "secret", "")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/virtualcenters", nil)
	req.Header.Set("Authorization", "Bearer "+handle)

	if _, err := gateway.Resolve(req); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
}

func TestGatewayResolveErrors(t *testing.T) {
	store := NewStore(time.Minute)
	gateway := NewGateway(&stubAuthenticator{}, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/virtualcenters", nil)
	_, err := gateway.Resolve(req)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeAuthRequired {
		t.Fatalf("expected AUTH_REQUIRED for missing handle, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/virtualcenters", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "unknown-handle"})
	_, err = gateway.Resolve(req)
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeInvalidSession {
		t.Fatalf("expected INVALID_SESSION for unknown handle, got %v", err)
	}
}

func TestExtractHandle(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*http.Request)
		expect string
	}{
		{
			name:   "no credentials",
			setup:  func(*http.Request) {},
			expect: "",
		},
		{
			name: "cookie only",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
			},
			expect: "from-cookie",
		},
		{
			name: "bearer only",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer from-header")
			},
			expect: "from-header",
		},
		{
			name: "bearer is case insensitive",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer from-header")
			},
			expect: "from-header",
		},
		{
			name: "basic auth is ignored",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
			expect: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			if got := ExtractHandle(req); got != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, got)
			}
		})
	}
}
