package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/internal/banking/tokenstore"
	"github.com/hoope/openbanking/pkg/jwsx"
	"github.com/hoope/openbanking/pkg/obclient"
	"github.com/hoope/openbanking/pkg/slogx"
)

// Scopes requested per consent kind. The openid scope rides along so the
// bank issues an id_token carrying the intent id.
const (
	ScopeAccounts = "openid accounts"
	ScopePayments = "openid payments"
)

// BankClient is the slice of the resource client the orchestrators use.
// Narrowed to an interface so flows can be tested against fakes.
type BankClient interface {
	ClientCredentialsGrant(ctx context.Context, scope string) (*obclient.TokenResponse, error)
	ExchangeAuthorizationCode(ctx context.Context, code string) (*obclient.TokenResponse, error)

	CreateAccountAccessConsent(ctx context.Context, bearer string, req obclient.AccountAccessConsentRequest) (*obclient.ConsentResponse, error)
	DeleteAccountAccessConsent(ctx context.Context, bearer, consentID string) error
	CreateDomesticPaymentConsent(ctx context.Context, bearer string, req obclient.PaymentConsentRequest, idempotencyKey string) (*obclient.ConsentResponse, error)
	InitiateDomesticPayment(ctx context.Context, req obclient.PaymentRequest, idempotencyKey string) (*obclient.PaymentResponse, error)
}

// RequestSigner mints the signed request object for authorization URLs.
// *jwsx.Signer satisfies this.
type RequestSigner interface {
	SignAuthRequest(req jwsx.AuthRequest, now time.Time) (string, error)
}

// AuthorizationPrompt is what a flow hands back for the user to act on:
// the consent to authorise and the bank URL to send them to.
type AuthorizationPrompt struct {
	ConsentID    string
	Status       string
	AuthorizeURL string
}

// flowConfig carries the OAuth/bank identity shared by both flows.
type flowConfig struct {
	ClientID    string
	RedirectURI string
	AuthBaseURL string
}

// authorizeURL builds the bank's hosted-UI URL. The state is the consent
// id, both in the query and inside the signed request object, so the
// redirect can be routed back to the right flow.
func (f flowConfig) authorizeURL(signer RequestSigner, scope, consentID string) (string, error) {
	requestJWT, err := signer.SignAuthRequest(jwsx.AuthRequest{
		ClientID:    f.ClientID,
		RedirectURI: f.RedirectURI,
		Scope:       scope,
		State:       consentID,
		ConsentID:   consentID,
	}, time.Now())
	if err != nil {
		return "", fmt.Errorf("sign auth request: %w", err)
	}

	q := url.Values{}
	q.Set("response_type", "code id_token")
	q.Set("scope", scope)
	q.Set("redirect_uri", f.RedirectURI)
	q.Set("client_id", f.ClientID)
	q.Set("state", consentID)
	q.Set("request", requestJWT)
	q.Set("response_mode", "fragment")

	return f.AuthBaseURL + "/ui/index.html?" + q.Encode(), nil
}

// completeAuthorization finishes a flow after the redirect: exchange the
// code, store the token set and mark the consent authorised.
func completeAuthorization(
	ctx context.Context,
	st store.Store,
	bank BankClient,
	tokens *tokenstore.TokenStore,
	callbackURL string,
) (domain.Consent, error) {
	log := slogx.FromContext(ctx)

	cb, err := ParseCallback(callbackURL)
	if err != nil {
		return domain.Consent{}, err
	}

	consent, err := st.Consents().GetConsentByID(ctx, cb.State)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Consent{}, fmt.Errorf("%w: %s", ErrUnknownState, cb.State)
		}
		return domain.Consent{}, err
	}

	resp, err := bank.ExchangeAuthorizationCode(ctx, cb.Code)
	if err != nil {
		return domain.Consent{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	now := time.Now().UTC()
	rec := domain.TokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Scope:        resp.Scope,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if rec.Scope == "" {
		rec.Scope = consent.Scope
	}
	if err := tokens.Put(ctx, rec); err != nil {
		return domain.Consent{}, err
	}

	if err := st.Consents().UpdateConsentStatus(ctx, consent.ID, domain.ConsentStatusAuthorised); err != nil {
		return domain.Consent{}, err
	}
	consent.Status = domain.ConsentStatusAuthorised

	log.Info("authorization completed", "consent_id", consent.ID, "kind", consent.Kind)
	return consent, nil
}
