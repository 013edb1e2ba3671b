package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const claimsKey contextKey = "preloader-admin-claims"

// WithClaims attaches verified admin claims to ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext returns the admin claims attached by Wrap.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// Skipper reports requests that need no token.
type Skipper func(r *http.Request) bool

// Middleware rejects unauthenticated requests to admin routes.
type Middleware struct {
	Config  Config
	Skipper Skipper
}

// NewMiddleware builds a Middleware. A nil skipper guards every route.
func NewMiddleware(cfg Config, skipper Skipper) Middleware {
	return Middleware{Config: cfg, Skipper: skipper}
}

// Wrap answers 401 with a JSON error body when a guarded request has no valid
// token. Scope checks are left to the handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	return Parse(header[len("Bearer "):], m.Config)
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	detail := ErrInvalidToken.Error()
	if errors.Is(err, ErrMissingToken) {
		detail = ErrMissingToken.Error()
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="preloader-admin"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":   "unauthorized",
		"detail": detail,
	})
}

// AdminOnly guards GET /v1/subscribers and lets everything else through.
func AdminOnly(r *http.Request) bool {
	return !(r.Method == http.MethodGet && r.URL.Path == "/v1/subscribers")
}
