package http

import (
	"errors"
	"net/http"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/service"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/internal/banking/tokenstore"
	"github.com/hoope/openbanking/pkg/httpx"
	"github.com/hoope/openbanking/pkg/obclient"
	"github.com/hoope/openbanking/pkg/slogx"
)

// writeServiceError maps domain and bank failures onto HTTP responses in
// one place so every handler reports the same way.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_amount",
			"amount must be a plain decimal with at most two fraction digits")

	case errors.Is(err, service.ErrPreconditionFailed):
		httpx.WriteError(w, http.StatusConflict, "precondition_failed", err.Error())

	case errors.Is(err, service.ErrAuthorizationDenied):
		httpx.WriteError(w, http.StatusBadRequest, "authorization_denied", err.Error())

	case errors.Is(err, service.ErrUnknownState):
		httpx.WriteError(w, http.StatusNotFound, "unknown_state", err.Error())

	case errors.Is(err, tokenstore.ErrNoToken), errors.Is(err, tokenstore.ErrNoRefreshToken):
		httpx.WriteError(w, http.StatusConflict, "not_connected",
			"no bank connection; complete the account access flow first")

	case errors.Is(err, obclient.ErrInsufficientFunds):
		httpx.WriteError(w, http.StatusPaymentRequired, "insufficient_funds",
			"the account balance does not cover the instructed amount")

	case errors.Is(err, obclient.ErrAuthentication):
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
			"the bank rejected the stored credentials; reconnect the account")

	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no such resource")

	default:
		var apiErr *obclient.APIError
		if errors.As(err, &apiErr) {
			log.Error("bank call failed",
				"status", apiErr.StatusCode,
				"code", apiErr.Code,
				"message", apiErr.Message)
			httpx.WriteError(w, http.StatusBadGateway, "bank_error", apiErr.Message)
			return
		}

		log.Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"something went wrong")
	}
}
