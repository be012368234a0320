package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/pkg/jwsx"
	"github.com/hoope/openbanking/pkg/obclient"
)

// memStore is an in-memory store.Store for flow tests.
type memStore struct {
	tokens   memTokens
	consents memConsents
}

func newMemStore() *memStore {
	return &memStore{
		consents: memConsents{byID: make(map[string]domain.Consent)},
	}
}

func (m *memStore) Tokens() store.Tokens     { return &m.tokens }
func (m *memStore) Consents() store.Consents { return &m.consents }
func (m *memStore) ApplyMigrations() error   { return nil }
func (m *memStore) Close() error             { return nil }

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) Tx(ctx context.Context) (store.Tx, error) {
	return &memTx{m}, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(&memTx{m})
}

type memTx struct{ *memStore }

func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

type memTokens struct {
	mu  sync.Mutex
	rec domain.TokenRecord
	set bool
}

func (m *memTokens) GetCurrent(ctx context.Context) (domain.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return domain.TokenRecord{}, store.ErrNotFound
	}
	return m.rec, nil
}

func (m *memTokens) ReplaceCurrent(ctx context.Context, rec domain.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec
	m.set = true
	return nil
}

func (m *memTokens) DeleteCurrent(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = domain.TokenRecord{}
	m.set = false
	return nil
}

type memConsents struct {
	mu   sync.Mutex
	byID map[string]domain.Consent
}

func (m *memConsents) CreateConsent(ctx context.Context, c domain.Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; ok {
		return store.ErrAlreadyExists
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memConsents) GetConsentByID(ctx context.Context, id string) (domain.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.Consent{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memConsents) UpdateConsentStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	m.byID[id] = c
	return nil
}

func (m *memConsents) ListConsentsByKind(ctx context.Context, kind domain.ConsentKind) ([]domain.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Consent
	for _, c := range m.byID {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memConsents) ExpireConsentsBefore(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.byID {
		if c.Expired(now) && (c.Status == domain.ConsentStatusAwaitingAuthorisation || c.Status == domain.ConsentStatusAuthorised) {
			c.Status = domain.ConsentStatusExpired
			m.byID[id] = c
		}
	}
	return nil
}

func (m *memConsents) DeleteConsentsBefore(ctx context.Context, cutoff time.Time) error {
	return nil
}

// fakeBank is a scripted BankClient that records everything it is asked
// to do.
type fakeBank struct {
	mu sync.Mutex

	grantScopes     []string
	exchangedCodes  []string
	consentReqs     []obclient.PaymentConsentRequest
	accessReqs      []obclient.AccountAccessConsentRequest
	paymentReqs     []obclient.PaymentRequest
	idempotencyKeys []string
	deletedConsents []string

	nextConsentID string
	paymentErr    error
}

func (f *fakeBank) ClientCredentialsGrant(ctx context.Context, scope string) (*obclient.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grantScopes = append(f.grantScopes, scope)
	return &obclient.TokenResponse{AccessToken: "cc-token", ExpiresIn: 2400}, nil
}

func (f *fakeBank) ExchangeAuthorizationCode(ctx context.Context, code string) (*obclient.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangedCodes = append(f.exchangedCodes, code)
	return &obclient.TokenResponse{
		AccessToken:  "user-access",
		RefreshToken: "user-refresh",
		ExpiresIn:    2400,
	}, nil
}

func (f *fakeBank) CreateAccountAccessConsent(ctx context.Context, bearer string, req obclient.AccountAccessConsentRequest) (*obclient.ConsentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessReqs = append(f.accessReqs, req)
	resp := &obclient.ConsentResponse{}
	resp.Data.ConsentID = f.consentID()
	resp.Data.Status = domain.ConsentStatusAwaitingAuthorisation
	return resp, nil
}

func (f *fakeBank) DeleteAccountAccessConsent(ctx context.Context, bearer, consentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedConsents = append(f.deletedConsents, consentID)
	return nil
}

func (f *fakeBank) CreateDomesticPaymentConsent(ctx context.Context, bearer string, req obclient.PaymentConsentRequest, idempotencyKey string) (*obclient.ConsentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consentReqs = append(f.consentReqs, req)
	f.idempotencyKeys = append(f.idempotencyKeys, idempotencyKey)
	resp := &obclient.ConsentResponse{}
	resp.Data.ConsentID = f.consentID()
	resp.Data.Status = domain.ConsentStatusAwaitingAuthorisation
	return resp, nil
}

func (f *fakeBank) InitiateDomesticPayment(ctx context.Context, req obclient.PaymentRequest, idempotencyKey string) (*obclient.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	f.paymentReqs = append(f.paymentReqs, req)
	f.idempotencyKeys = append(f.idempotencyKeys, idempotencyKey)
	resp := &obclient.PaymentResponse{}
	resp.Data.DomesticPaymentID = "payment-1"
	resp.Data.ConsentID = req.Data.ConsentID
	resp.Data.Status = "AcceptedSettlementInProcess"
	return resp, nil
}

func (f *fakeBank) consentID() string {
	if f.nextConsentID != "" {
		return f.nextConsentID
	}
	return "consent-1"
}

// fakeRequestSigner returns a recognisable request object without real
// crypto.
type fakeRequestSigner struct{}

func (fakeRequestSigner) SignAuthRequest(req jwsx.AuthRequest, now time.Time) (string, error) {
	return "signed-request-for-" + req.ConsentID, nil
}
