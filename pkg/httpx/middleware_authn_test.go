package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const issuer = "https://auth.assetflow.test"

func TestAuthnMiddleware(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(issuer, 1)
	require.NoError(t, err)

	var seen jwtx.Claims
	protected := httpx.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = httpx.ClaimsFromContext(r.Context())
			require.Equal(t, seen.Subject, httpx.UserIDFromContext(r.Context()))
			w.WriteHeader(http.StatusNoContent)
		}),
		httpx.AuthnMiddleware(km.Verifier),
	)

	mint := func(typ jwtx.TokenType) string {
		c := jwtx.NewClaims(typ, "acct-1", issuer, time.Minute, time.Now())
		c.Role = "admin"
		tok, err := km.Signer().Sign(c)
		require.NoError(t, err)
		return tok
	}

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/devices", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	t.Run("access token passes", func(t *testing.T) {
		rec := call("Bearer " + mint(jwtx.TypeAccess))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "acct-1", seen.Subject)
		require.Equal(t, "admin", seen.Role)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := call("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("temp session token rejected", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, call("Bearer "+mint(jwtx.TypeTempSession)).Code)
	})

	t.Run("unlock token rejected", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, call("Bearer "+mint(jwtx.TypeUnlock)).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, call("Bearer nope").Code)
	})
}

func TestRequireAnyRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := httpx.RequireAnyRole("superadmin", "admin")(ok)

	serve := func(role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(httpx.ContextWithClaims(req.Context(), jwtx.Claims{Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve("admin"))
	require.Equal(t, http.StatusOK, serve("superadmin"))
	require.Equal(t, http.StatusForbidden, serve("member"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
