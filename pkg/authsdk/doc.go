/*
Package authsdk is a Go client for the AssetFlow authentication service and
the home of the request and response types its HTTP API exchanges.

# Logging in

A login either returns tokens or a challenge:

	client := authsdk.NewSDKClient("https://auth.example.com")

	resp, err := client.Login(ctx, authsdk.LoginRequest{
		Email:       "wanjiru@county.go.ke",
		Password:    password,
		Fingerprint: fingerprint,
		Timezone:    "EAT",
		Language:    "en",
	})
	if err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) {
			fmt.Println(apiErr.Code, apiErr.Description)
		}
		return err
	}

	if resp.IsChallenge() && resp.RequireMFA {
		resp, err = client.VerifyMFA(ctx, resp.TempSessionToken, codeFromEmail)
	}

	session, ok := client.SessionFromLogin(resp)

# Sessions

A Session carries the access token for the bearer endpoints: devices, login
history, IP whitelisting and permission checks.

	decision, err := session.CheckPermission(ctx, authsdk.AuthzCheckRequest{
		Resource: "asset",
		Action:   "view",
		Attributes: map[string]any{"department_id": "dept_finance"},
	})

Sessions do not refresh tokens. Errors returned by the service are *APIError
values carrying the HTTP status and the "error" code.
*/
package authsdk
