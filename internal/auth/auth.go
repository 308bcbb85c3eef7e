// Package auth attributes API requests to a user id.
//
// Two modes exist. In "jwt" mode requests carry an HS256 bearer token whose
// subject is the user id. In "header" mode a trusted reverse proxy sets a
// header (X-User-ID by default) and the value is taken as is.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"podcastflow/internal/config"
	"podcastflow/internal/services"
)

// Authenticator resolves the caller of an HTTP request.
type Authenticator struct {
	mode   string
	header string
	secret []byte
	issuer string
	now    func() time.Time
}

// New validates cfg and returns an Authenticator.
func New(cfg config.Auth) (*Authenticator, error) {
	a := &Authenticator{
		mode:   strings.ToLower(strings.TrimSpace(cfg.Mode)),
		header: strings.TrimSpace(cfg.HeaderName),
		issuer: strings.TrimSpace(cfg.Issuer),
		now:    time.Now,
	}
	switch a.mode {
	case config.AuthModeHeader:
		if a.header == "" {
			a.header = "X-User-ID"
		}
	case config.AuthModeJWT:
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "auth", "init", "jwt secret is required", nil)
		}
		a.secret = []byte(cfg.JWTSecret)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "auth", "init", fmt.Sprintf("unsupported mode %q", cfg.Mode), nil)
	}
	return a, nil
}

// Mode returns the configured mode.
func (a *Authenticator) Mode() string {
	return a.mode
}

// UserID returns the authenticated user of r or an ErrUnauthorized error.
func (a *Authenticator) UserID(r *http.Request) (string, error) {
	if a.mode == config.AuthModeHeader {
		if id := strings.TrimSpace(r.Header.Get(a.header)); id != "" {
			return id, nil
		}
		return "", services.Wrap(services.ErrUnauthorized, "auth", "header", "missing "+a.header+" header", nil)
	}

	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", services.Wrap(services.ErrUnauthorized, "auth", "bearer", "missing bearer token", nil)
	}
	return a.verify(raw)
}

func (a *Authenticator) verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", services.Wrap(services.ErrUnauthorized, "auth", "bearer", "invalid token", err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", services.Wrap(services.ErrUnauthorized, "auth", "bearer", "token has no subject", nil)
	}
	return subject, nil
}

// IssueToken signs a bearer token for userID. Only valid in jwt mode; the CLI
// uses it to call its own daemon.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	if a.mode != config.AuthModeJWT {
		return "", services.Wrap(services.ErrConfiguration, "auth", "issue token", "auth mode is not jwt", nil)
	}
	if strings.TrimSpace(userID) == "" {
		return "", services.Wrap(services.ErrValidation, "auth", "issue token", "user id is required", nil)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Middleware stores the caller's user id in the request context when one is
// present. It never rejects; handlers that need a user call Require or
// services.UserIDFromContext.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := a.UserID(r); err == nil {
			r = r.WithContext(services.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without an authenticated user with 401.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := services.UserIDFromContext(r.Context()); !ok {
			id, err := a.UserID(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			r = r.WithContext(services.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
