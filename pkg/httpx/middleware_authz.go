package httpx

import (
	"net/http"
	"slices"
)

// RequireAnyRole lets the request through only when the access token's role
// label is one of the given roles. Must run after AuthnMiddleware.
func RequireAnyRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !slices.Contains(roles, claims.Role) {
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "access_denied",
					"error_description": "not enough permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
