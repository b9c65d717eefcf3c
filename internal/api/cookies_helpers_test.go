package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"vcfgate/internal/auth"
)

func issuedCookie(t *testing.T, r *http.Request, policy SessionCookiePolicy) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	setSessionCookie(rec, r, "handle-value", 120, policy)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.SessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestSetSessionCookieAttributes(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	cookie := issuedCookie(t, req, DefaultSessionCookiePolicy())
	if cookie == nil {
		t.Fatal("expected cookie to be set")
	}
	if cookie.Value != "handle-value" {
		t.Fatalf("unexpected value %q", cookie.Value)
	}
	if cookie.Path != "/" {
		t.Fatalf("expected path /, got %q", cookie.Path)
	}
	if cookie.MaxAge != 120 {
		t.Fatalf("expected Max-Age 120, got %d", cookie.MaxAge)
	}
	if !cookie.HttpOnly {
		t.Fatal("expected HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite Lax, got %v", cookie.SameSite)
	}
	if cookie.Secure {
		t.Fatal("expected plain HTTP to produce a non-Secure cookie under auto mode")
	}
}

func TestSetSessionCookieSecureOnTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.TLS = &tls.ConnectionState{}
	cookie := issuedCookie(t, req, DefaultSessionCookiePolicy())
	if cookie == nil || !cookie.Secure {
		t.Fatal("expected Secure cookie over TLS")
	}
}

func TestSetSessionCookieSecureBehindProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	cookie := issuedCookie(t, req, DefaultSessionCookiePolicy())
	if cookie == nil || !cookie.Secure {
		t.Fatal("expected Secure cookie when the proxy terminated TLS")
	}
}

func TestSetSessionCookieSecureAlways(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	policy := SessionCookiePolicy{SameSite: http.SameSiteStrictMode, SecureMode: SessionCookieSecureAlways}
	cookie := issuedCookie(t, req, policy)
	if cookie == nil || !cookie.Secure {
		t.Fatal("expected Secure cookie under always mode")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite Strict, got %v", cookie.SameSite)
	}
}

func TestSetSessionCookieSkipsEmptyHandle(t *testing.T) {
	rec := httptest.NewRecorder()
	setSessionCookie(rec, httptest.NewRequest(http.MethodPost, "/", nil), "", 120, DefaultSessionCookiePolicy())
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("expected no cookie for an empty handle")
	}
}
