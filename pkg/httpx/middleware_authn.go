package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// AuthnMiddleware requires a valid bearer access token. Temp session, refresh
// and unlock tokens are rejected even though they carry a valid signature.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			if err := claims.ValidateType(jwtx.TypeAccess); err != nil {
				writeBearerError(w, "access token required")
				log.Warn("wrong token type presented", "type", claims.Type, "sub", claims.Subject)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
