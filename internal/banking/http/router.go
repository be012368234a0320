package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hoope/openbanking/internal/banking/service"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/pkg/httpx"
	"github.com/hoope/openbanking/pkg/obclient"
	"github.com/hoope/openbanking/pkg/slogx"
)

// ResourceClient is the read-side slice of the bank client the account
// data handlers use.
type ResourceClient interface {
	ListAccounts(ctx context.Context) (*obclient.AccountsResponse, error)
	GetBalances(ctx context.Context, accountID string) (*obclient.BalancesResponse, error)
	GetTransactions(ctx context.Context, accountID string) (*obclient.TransactionsResponse, error)
	ListBeneficiaries(ctx context.Context, accountID string) (*obclient.BeneficiariesResponse, error)
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	AccountAccess *service.AccountAccessService
	Payments      *service.PaymentService
	Broker        *service.CallbackBroker
	Bank          ResourceClient
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerConsents()
	r.registerPayments()
	r.registerAccounts()
	r.registerCallback()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerConsents() {
	startHandler := &AccountAccessStartHandler{Service: r.AccountAccess}
	revokeHandler := &ConsentRevokeHandler{Service: r.AccountAccess}
	exchangeHandler := &TokenExchangeHandler{Service: r.AccountAccess}

	// Consent creation hits the bank; keep it strict.
	r.Mux.Handle("POST /v1/account-access",
		httpx.Chain(startHandler, httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("DELETE /v1/consents/{id}",
		httpx.Chain(revokeHandler, httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /v1/token/exchange",
		httpx.Chain(exchangeHandler, httpx.RateLimitByIP(httpx.StrictLimit)))
}

func (r *Router) registerPayments() {
	consentHandler := &PaymentConsentHandler{Service: r.Payments}
	initiateHandler := &PaymentInitiateHandler{Service: r.Payments}

	r.Mux.Handle("POST /v1/payments/consent",
		httpx.Chain(consentHandler, httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /v1/payments/{consentId}/initiate",
		httpx.Chain(initiateHandler, httpx.RateLimitByIP(httpx.StrictLimit)))
}

func (r *Router) registerAccounts() {
	h := &AccountsHandler{Bank: r.Bank}

	r.Mux.Handle("GET /v1/accounts",
		httpx.Chain(http.HandlerFunc(h.List), httpx.RateLimitByIP(httpx.ModerateLimit)))
	r.Mux.Handle("GET /v1/accounts/{id}/balances",
		httpx.Chain(http.HandlerFunc(h.Balances), httpx.RateLimitByIP(httpx.ModerateLimit)))
	r.Mux.Handle("GET /v1/accounts/{id}/transactions",
		httpx.Chain(http.HandlerFunc(h.Transactions), httpx.RateLimitByIP(httpx.ModerateLimit)))
	r.Mux.Handle("GET /v1/accounts/{id}/beneficiaries",
		httpx.Chain(http.HandlerFunc(h.Beneficiaries), httpx.RateLimitByIP(httpx.ModerateLimit)))
}

func (r *Router) registerCallback() {
	h := &CallbackHandler{Broker: r.Broker}

	// The bank's UI redirects real users here; lenient so retries and
	// the fragment-rewrite second request are never throttled away.
	r.Mux.Handle("GET /callback",
		httpx.Chain(h, httpx.RateLimitByIP(httpx.LenientLimit)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
