package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"podcastflow/internal/config"
	"podcastflow/internal/services"
)

const testSecret = "test-secret-0123456789abcdef"

func TestHeaderModeReadsTrustedHeader(t *testing.T) {
	a, err := New(config.Auth{Mode: config.AuthModeHeader, HeaderName: "X-User-ID"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	if _, err := a.UserID(req); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized without header, got %v", err)
	}
	req.Header.Set("X-User-ID", " user-7 ")
	id, err := a.UserID(req)
	if err != nil || id != "user-7" {
		t.Fatalf("UserID = %q, %v", id, err)
	}
}

func TestJWTModeRoundTrip(t *testing.T) {
	a, err := New(config.Auth{Mode: config.AuthModeJWT, JWTSecret: testSecret, Issuer: "podcastflow"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := a.IssueToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, err := a.UserID(req)
	if err != nil || id != "user-1" {
		t.Fatalf("UserID = %q, %v", id, err)
	}
}

func TestJWTModeRejectsBadTokens(t *testing.T) {
	a, _ := New(config.Auth{Mode: config.AuthModeJWT, JWTSecret: testSecret})
	other, _ := New(config.Auth{Mode: config.AuthModeJWT, JWTSecret: "another-secret-0123456789"})
	forged, _ := other.IssueToken("user-1", time.Minute)

	expiredIssuer, _ := New(config.Auth{Mode: config.AuthModeJWT, JWTSecret: testSecret})
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.IssueToken("user-1", time.Minute)

	for name, header := range map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"forged":    "Bearer " + forged,
		"expired":   "Bearer " + expired,
		"malformed": "Bearer not.a.token",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if _, err := a.UserID(req); !errors.Is(err, services.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(config.Auth{Mode: config.AuthModeJWT}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := New(config.Auth{Mode: "oauth"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	header, _ := New(config.Auth{Mode: config.AuthModeHeader})
	if _, err := header.IssueToken("u", time.Minute); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected IssueToken to fail in header mode, got %v", err)
	}
}

func TestMiddlewareAndRequire(t *testing.T) {
	a, _ := New(config.Auth{Mode: config.AuthModeHeader, HeaderName: "X-User-ID"})
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = services.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	handler := a.Middleware(a.Require(inner))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "user-3")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || seen != "user-3" {
		t.Fatalf("expected pass-through with user-3, got %d %q", rec.Code, seen)
	}
}
