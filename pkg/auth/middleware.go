// Package auth authenticates API callers and scopes requests to an org.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

type contextKey string

const orgKey contextKey = "org_id"

// OrgFromContext extracts the authenticated org ID from the context.
func OrgFromContext(ctx context.Context) string {
	v, _ := ctx.Value(orgKey).(string)
	return v
}

// WithOrg returns a copy of ctx carrying orgID.
func WithOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

// APIKeyAuth returns middleware that resolves the caller's org from an API
// key sent as X-API-Key or as a bearer token. Probe paths pass through.
func APIKeyAuth(keys *KeyStore) func(http.Handler) http.Handler {
	skipPaths := map[string]bool{
		"/healthz": true,
		"/readyz":  true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				apiKey, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if apiKey == "" {
				types.ErrUnauthorized("missing API key").WriteJSON(w)
				return
			}

			orgID, ok := keys.Lookup(apiKey)
			if !ok {
				types.ErrUnauthorized("invalid API key").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOrg(r.Context(), orgID)))
		})
	}
}
