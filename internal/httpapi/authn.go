package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"enlace.org/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// withAuth authenticates the bearer token, re-validates the principal against
// the database and attaches the normalized descriptor to the context. Every
// failure is a 401; the response never says which check failed.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			} else {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withOptionalAuth attaches a principal when a valid token is presented and
// silently continues anonymous otherwise. Used by endpoints that personalize
// output for authenticated callers but also serve anonymous ones.
func (a *API) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err == nil {
			if principal, err := a.auth.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return "", auth.ErrNoToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", auth.ErrNoToken
	}
	return token, nil
}
