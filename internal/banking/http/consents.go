package http

import (
	"encoding/json"
	"net/http"

	"github.com/hoope/openbanking/internal/banking/service"
	"github.com/hoope/openbanking/pkg/httpx"
)

// AccountAccessStartHandler serves POST /v1/account-access. It registers
// an account access consent with the bank and returns the URL the user
// must visit to authorise it.
type AccountAccessStartHandler struct {
	Service *service.AccountAccessService
}

type accountAccessRequest struct {
	Permissions []string `json:"permissions,omitempty"`
}

type authorizationPromptResponse struct {
	ConsentID    string `json:"consent_id"`
	Status       string `json:"status"`
	AuthorizeURL string `json:"authorize_url"`
}

func (h *AccountAccessStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req accountAccessRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}

	prompt, err := h.Service.Start(r.Context(), req.Permissions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authorizationPromptResponse{
		ConsentID:    prompt.ConsentID,
		Status:       prompt.Status,
		AuthorizeURL: prompt.AuthorizeURL,
	})
}

// ConsentRevokeHandler serves DELETE /v1/consents/{id}, revoking the
// consent at the bank and marking it revoked locally.
type ConsentRevokeHandler struct {
	Service *service.AccountAccessService
}

func (h *ConsentRevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	consentID := r.PathValue("id")
	if consentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "consent id is required")
		return
	}

	if err := h.Service.Revoke(r.Context(), consentID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// TokenExchangeHandler serves POST /v1/token/exchange, finishing an
// authorization from a callback URL the caller captured itself (e.g. a
// mobile deep link) instead of via GET /callback.
type TokenExchangeHandler struct {
	Service *service.AccountAccessService
}

type tokenExchangeRequest struct {
	CallbackURL string `json:"callback_url"`
}

type tokenExchangeResponse struct {
	ConsentID string `json:"consent_id"`
	Status    string `json:"status"`
}

func (h *TokenExchangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokenExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.CallbackURL == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "callback_url is required")
		return
	}

	consent, err := h.Service.Complete(r.Context(), req.CallbackURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenExchangeResponse{
		ConsentID: consent.ID,
		Status:    consent.Status,
	})
}
