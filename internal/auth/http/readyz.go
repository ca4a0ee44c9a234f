package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
)

// ReadinessChecker is implemented by background components that can report
// whether they are keeping up, such as the audit pipeline.
type ReadinessChecker interface {
	Ready() error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness check endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the database, the token signer and the audit pipeline
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
	audit ReadinessChecker,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK
		degrade := func() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			degrade()
		}

		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			degrade()
		}

		// A backed up audit queue loses events, so it fails readiness too.
		if audit != nil {
			checks.Audit = "ok"
			if err := audit.Ready(); err != nil {
				checks.Audit = "error: " + err.Error()
				degrade()
			}
		}

		httpx.WriteJSON(w, statusCode, authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
