package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/assetflow/internal/auth/authz"
	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/pkg/authsdk"
	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// AuthzHandler lets other services ask for a permission decision on behalf
// of the token's subject.
type AuthzHandler struct {
	Evaluator *authz.Evaluator
	Accounts  store.Accounts
}

// HandleCheck godoc
//
//	@Summary		Check a permission
//	@Description	Evaluates role, scope and policy layers for the caller. A denial is a 200 with allowed=false and the denying layer.
//	@Tags			Authz
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.AuthzCheckRequest	true	"Resource type, action and resource attributes"
//	@Success		200		{object}	authsdk.AuthzCheckResponse	"Decision"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Missing or invalid access token"
//	@Router			/v1/authz/check [post].
func (h *AuthzHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AuthzCheckRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Resource == "" || req.Action == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	acct, ok := h.caller(w, r)
	if !ok {
		return
	}

	err := h.Evaluator.Evaluate(r.Context(), acct, req.Resource, req.Action, authz.Resource(req.Attributes))
	var denial *authz.Denial
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, authsdk.AuthzCheckResponse{Allowed: true})
	case errors.As(err, &denial):
		httpx.WriteJSON(w, http.StatusOK, authsdk.AuthzCheckResponse{
			Layer:  string(denial.Layer),
			Reason: denial.Error(),
		})
	default:
		slogx.FromContext(r.Context()).Error("permission evaluation failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// HandleScope godoc
//
//	@Summary		Caller's list filter
//	@Description	Returns the departments, counties and asset categories the caller's list queries are limited to.
//	@Tags			Authz
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.ScopeResponse	"Filter"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid access token"
//	@Router			/v1/authz/scope [get].
func (h *AuthzHandler) HandleScope(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.caller(w, r)
	if !ok {
		return
	}

	f, err := h.Evaluator.FilterScope(acct)
	if err != nil {
		slogx.FromContext(r.Context()).Error("scope filter failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ScopeResponse{
		Departments: f.Departments,
		Counties:    f.Counties,
		Categories:  f.Categories,
	})
}

// caller loads the token subject's account. Tokens for accounts that no
// longer exist or are no longer active are treated as invalid.
func (h *AuthzHandler) caller(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	acct, err := h.Accounts.GetAccountByID(r.Context(), httpx.UserIDFromContext(r.Context()))
	switch {
	case errors.Is(err, store.ErrNotFound):
		authsdk.ErrInvalidToken.WriteError(w)
		return domain.Account{}, false
	case err != nil:
		slogx.FromContext(r.Context()).Error("load caller", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return domain.Account{}, false
	case acct.Status != domain.StatusActive:
		authsdk.ErrInvalidToken.WriteError(w)
		return domain.Account{}, false
	}
	return acct, true
}
