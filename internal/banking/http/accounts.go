package http

import (
	"net/http"

	"github.com/hoope/openbanking/pkg/httpx"
)

// AccountsHandler serves the read-only account data routes. Each call
// rides on the stored user token set; the client refreshes and retries
// transparently.
type AccountsHandler struct {
	Bank ResourceClient
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Bank.ListAccounts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AccountsHandler) Balances(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Bank.GetBalances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AccountsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Bank.GetTransactions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AccountsHandler) Beneficiaries(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Bank.ListBeneficiaries(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
