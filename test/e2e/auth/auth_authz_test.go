//go:build e2e

package auth_test

import (
	"slices"
	"testing"

	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// TestAccessTokenVerifiesAgainstJWKS verifies a token from the MFA flow with
// a KeySet built only from the public JWKS.
func TestAccessTokenVerifiesAgainstJWKS(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)
	session := loginAdmin(t, c, client)

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	for _, k := range jwks.Keys {
		require.NoError(t, keys.AddJWK(k))
	}

	claims, err := jwtx.NewVerifierEdDSA(keys, issuer, nil).Verify(session.AccessToken())
	require.NoError(t, err)
	require.Equal(t, jwtx.TypeAccess, claims.Type)
	require.Equal(t, adminRole, claims.Role)
	require.Equal(t, issuer, claims.Issuer)
	require.NotEmpty(t, claims.Subject)
	require.True(t, slices.Contains(claims.AMR, "mfa"), "MFA login should be recorded in amr")
}

// TestAdminPermissions verifies the bootstrapped wildcard role passes the
// permission check and is not narrowed by a scope.
func TestAdminPermissions(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)
	session := loginAdmin(t, c, client)
	ctx := t.Context()

	decision, err := session.CheckPermission(ctx, authsdk.AuthzCheckRequest{
		Resource: "asset",
		Action:   "dispose",
		Attributes: map[string]any{
			"department_id": "dept_finance",
			"county":        "Nairobi",
		},
	})
	require.NoError(t, err)
	require.True(t, decision.Allowed, "wildcard role should be allowed: %+v", decision)

	scope, err := session.Scope(ctx)
	require.NoError(t, err)
	require.Empty(t, scope.Departments)
	require.Empty(t, scope.Counties)

	jwks, err := client.GetJWKS(ctx)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	for _, k := range jwks.Keys {
		require.NoError(t, keys.AddJWK(k))
	}
	claims, err := jwtx.NewVerifierEdDSA(keys, issuer, nil).Verify(session.AccessToken())
	require.NoError(t, err)

	history, err := session.AccountLoginHistory(ctx, claims.Subject, 5)
	require.NoError(t, err)
	require.NotEmpty(t, history.Attempts)
}
