package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/tokenstore"

	"github.com/stretchr/testify/require"
)

func newAccessFixture(t *testing.T) (*AccountAccessService, *fakeBank, *memStore) {
	t.Helper()

	st := newMemStore()
	bank := &fakeBank{}
	tokens, err := tokenstore.New(context.Background(), st.Tokens())
	require.NoError(t, err)

	svc := NewAccountAccessService(
		st, bank, tokens, fakeRequestSigner{}, NewCallbackBroker(),
		"client-123", "https://app.example.com/callback", "https://bank.example.com",
		24*time.Hour,
	)
	return svc, bank, st
}

func TestAccountAccessStart(t *testing.T) {
	svc, bank, st := newAccessFixture(t)

	prompt, err := svc.Start(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "consent-1", prompt.ConsentID)

	require.Equal(t, []string{ScopeAccounts}, bank.grantScopes)
	require.Len(t, bank.accessReqs, 1)
	require.Equal(t, DefaultPermissions, bank.accessReqs[0].Data.Permissions)
	require.NotNil(t, bank.accessReqs[0].Data.ExpirationDateTime)

	u, err := url.Parse(prompt.AuthorizeURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, ScopeAccounts, q.Get("scope"))
	require.Equal(t, "consent-1", q.Get("state"))

	consent, err := st.Consents().GetConsentByID(context.Background(), "consent-1")
	require.NoError(t, err)
	require.Equal(t, domain.ConsentKindAccountAccess, consent.Kind)
	require.Equal(t, domain.ConsentStatusAwaitingAuthorisation, consent.Status)
}

func TestAccountAccessRun(t *testing.T) {
	svc, bank, st := newAccessFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	var consent domain.Consent
	var runErr error
	go func() {
		defer close(done)
		consent, runErr = svc.Run(ctx, []string{"ReadAccountsBasic"})
	}()

	require.Eventually(t, func() bool {
		return svc.Broker.Deliver("https://app.example.com/callback#code=code-9&state=consent-1") == nil
	}, 2*time.Second, 10*time.Millisecond)

	<-done
	require.NoError(t, runErr)
	require.True(t, consent.Authorised())
	require.Equal(t, []string{"code-9"}, bank.exchangedCodes)

	stored, err := st.Consents().GetConsentByID(context.Background(), "consent-1")
	require.NoError(t, err)
	require.Equal(t, domain.ConsentStatusAuthorised, stored.Status)

	rec, err := st.Tokens().GetCurrent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-access", rec.AccessToken)
}

func TestAccountAccessCompleteUnknownState(t *testing.T) {
	svc, _, _ := newAccessFixture(t)

	_, err := svc.Complete(context.Background(), "https://app.example.com/callback?code=abc&state=never-created")
	require.ErrorIs(t, err, ErrUnknownState)
}

func TestAccountAccessRevoke(t *testing.T) {
	svc, bank, st := newAccessFixture(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, "consent-1"))
	require.Equal(t, []string{"consent-1"}, bank.deletedConsents)

	consent, err := st.Consents().GetConsentByID(ctx, "consent-1")
	require.NoError(t, err)
	require.Equal(t, domain.ConsentStatusRevoked, consent.Status)
}

func TestRevokeRejectsPaymentConsent(t *testing.T) {
	svc, _, st := newAccessFixture(t)
	ctx := context.Background()

	require.NoError(t, st.Consents().CreateConsent(ctx, domain.Consent{
		ID:     "pay-1",
		Kind:   domain.ConsentKindDomesticPayment,
		Status: domain.ConsentStatusAuthorised,
	}))

	err := svc.Revoke(ctx, "pay-1")
	require.ErrorIs(t, err, ErrPreconditionFailed)
}
