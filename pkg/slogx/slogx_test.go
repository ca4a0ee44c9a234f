package slogx_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/assetflow/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "auth", Version: "test", Env: "test", Level: "info", Writer: &buf})

	var fromCtx bool
	h := slogx.HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = slogx.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates id", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

		require.True(t, fromCtx)
		require.Equal(t, http.StatusTeapot, rec.Code)
		id := rec.Header().Get(slogx.RequestIDHeader)
		require.NotEmpty(t, id)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "http_request", line["msg"])
		require.Equal(t, id, line["req_id"])
		require.Equal(t, "auth", line["service"])
		require.EqualValues(t, http.StatusTeapot, line["status"])
	})

	t.Run("propagates inbound id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		req.Header.Set(slogx.RequestIDHeader, "abc123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "abc123", rec.Header().Get(slogx.RequestIDHeader))
	})
}
