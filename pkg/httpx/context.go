package httpx

import (
	"context"

	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeyClaims   ctxKey = "claims"
	CtxKeyClientIP ctxKey = "client_ip"
)

// ClaimsFromContext returns the verified access token claims placed on the
// context by AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// UserIDFromContext returns the authenticated account id, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyUserID).(string)
	return id
}

// ContextWithClaims is exported for handler tests that bypass the middleware.
func ContextWithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	return context.WithValue(ctx, CtxKeyClaims, c)
}
