package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/service"
	"github.com/hoope/openbanking/pkg/httpx"
)

// PaymentConsentHandler serves POST /v1/payments/consent. It validates
// the instruction, registers a signed payment consent and returns the
// authorization URL.
type PaymentConsentHandler struct {
	Service *service.PaymentService
}

type paymentConsentRequest struct {
	Amount             string `json:"amount"`
	Currency           string `json:"currency,omitempty"`
	CreditorSchemeName string `json:"creditor_scheme_name"`
	CreditorID         string `json:"creditor_identification"`
	CreditorName       string `json:"creditor_name,omitempty"`
	Reference          string `json:"reference,omitempty"`
}

func (h *PaymentConsentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req paymentConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	prompt, err := h.Service.Start(r.Context(), domain.PaymentInstruction{
		Amount:             req.Amount,
		Currency:           req.Currency,
		CreditorSchemeName: req.CreditorSchemeName,
		CreditorID:         req.CreditorID,
		CreditorName:       req.CreditorName,
		Reference:          req.Reference,
	})
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

// PaymentInitiateHandler serves POST /v1/payments/{consentId}/initiate,
// submitting the payment for an authorised consent.
type PaymentInitiateHandler struct {
	Service *service.PaymentService
}

type paymentResultResponse struct {
	DomesticPaymentID string     `json:"domestic_payment_id"`
	ConsentID         string     `json:"consent_id"`
	Status            string     `json:"status"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
}

func (h *PaymentInitiateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	consentID := r.PathValue("consentId")
	if consentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "consent id is required")
		return
	}

	result, err := h.Service.Initiate(r.Context(), consentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := paymentResultResponse{
		DomesticPaymentID: result.DomesticPaymentID,
		ConsentID:         result.ConsentID,
		Status:            result.Status,
	}
	if !result.CreatedAt.IsZero() {
		resp.CreatedAt = &result.CreatedAt
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}
