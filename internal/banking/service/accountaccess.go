package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/internal/banking/tokenstore"
	"github.com/hoope/openbanking/pkg/obclient"
	"github.com/hoope/openbanking/pkg/slogx"
)

// DefaultPermissions is what gets requested when the caller does not
// name specific permission codes.
var DefaultPermissions = []string{
	"ReadAccountsBasic",
	"ReadAccountsDetail",
	"ReadBalances",
	"ReadTransactionsBasic",
	"ReadTransactionsDetail",
	"ReadBeneficiariesBasic",
	"ReadBeneficiariesDetail",
}

// AccountAccessService runs the account access consent flow: register a
// consent with the bank, send the user to authorise it, then trade the
// resulting code for the user token set.
type AccountAccessService struct {
	Store  store.Store
	Bank   BankClient
	Tokens *tokenstore.TokenStore
	Signer RequestSigner
	Broker *CallbackBroker
	Flow   flowConfig

	// ConsentTTL bounds how long the consent stays valid at the bank.
	// Zero means no expiration window is requested.
	ConsentTTL time.Duration
}

// NewAccountAccessService wires an account access flow.
func NewAccountAccessService(
	st store.Store,
	bank BankClient,
	tokens *tokenstore.TokenStore,
	signer RequestSigner,
	broker *CallbackBroker,
	clientID, redirectURI, authBaseURL string,
	consentTTL time.Duration,
) *AccountAccessService {
	return &AccountAccessService{
		Store:  st,
		Bank:   bank,
		Tokens: tokens,
		Signer: signer,
		Broker: broker,
		Flow: flowConfig{
			ClientID:    clientID,
			RedirectURI: redirectURI,
			AuthBaseURL: authBaseURL,
		},
		ConsentTTL: consentTTL,
	}
}

// accountAccessConsentRequest builds the consent payload. When a TTL is
// set, transaction visibility runs from a year back until the consent
// expires.
func accountAccessConsentRequest(permissions []string, ttl time.Duration) obclient.AccountAccessConsentRequest {
	req := obclient.AccountAccessConsentRequest{}
	req.Data.Permissions = permissions

	if ttl > 0 {
		now := time.Now().UTC()
		expiration := now.Add(ttl)
		from := now.AddDate(-1, 0, 0)
		req.Data.ExpirationDateTime = &expiration
		req.Data.TransactionFromDateTime = &from
		req.Data.TransactionToDateTime = &expiration
	}

	return req
}

// Start registers an account access consent and returns the URL the
// user must visit to authorise it.
func (s *AccountAccessService) Start(ctx context.Context, permissions []string) (*AuthorizationPrompt, error) {
	log := slogx.FromContext(ctx)

	if len(permissions) == 0 {
		permissions = DefaultPermissions
	}

	grant, err := s.Bank.ClientCredentialsGrant(ctx, ScopeAccounts)
	if err != nil {
		return nil, fmt.Errorf("client credentials grant: %w", err)
	}

	req := accountAccessConsentRequest(permissions, s.ConsentTTL)
	resp, err := s.Bank.CreateAccountAccessConsent(ctx, grant.AccessToken, req)
	if err != nil {
		return nil, fmt.Errorf("create account access consent: %w", err)
	}

	consent := domain.Consent{
		ID:          resp.Data.ConsentID,
		Kind:        domain.ConsentKindAccountAccess,
		Status:      resp.Data.Status,
		Scope:       ScopeAccounts,
		Permissions: permissions,
	}
	if resp.Data.ExpirationDateTime != nil {
		consent.ExpiresAt = *resp.Data.ExpirationDateTime
	}
	if err := s.Store.Consents().CreateConsent(ctx, consent); err != nil {
		return nil, err
	}

	authorizeURL, err := s.Flow.authorizeURL(s.Signer, ScopeAccounts, consent.ID)
	if err != nil {
		return nil, err
	}

	log.Info("account access consent created", "consent_id", consent.ID, "status", consent.Status)
	return &AuthorizationPrompt{
		ConsentID:    consent.ID,
		Status:       consent.Status,
		AuthorizeURL: authorizeURL,
	}, nil
}

// Complete finishes the flow from the redirect URL the bank sent the
// user back with.
func (s *AccountAccessService) Complete(ctx context.Context, callbackURL string) (domain.Consent, error) {
	return completeAuthorization(ctx, s.Store, s.Bank, s.Tokens, callbackURL)
}

// Run sequences the whole flow: start, wait for the redirect via the
// broker, complete. It blocks until the user acts or ctx expires.
func (s *AccountAccessService) Run(ctx context.Context, permissions []string) (domain.Consent, error) {
	prompt, err := s.Start(ctx, permissions)
	if err != nil {
		return domain.Consent{}, err
	}

	cb, err := s.Broker.Await(ctx, prompt.ConsentID)
	if err != nil {
		return domain.Consent{}, err
	}

	return s.Complete(ctx, cb.RawURL)
}

// Revoke deletes the consent at the bank and marks it revoked locally.
// The stored token set survives; other consents may still back it.
func (s *AccountAccessService) Revoke(ctx context.Context, consentID string) error {
	log := slogx.FromContext(ctx)

	consent, err := s.Store.Consents().GetConsentByID(ctx, consentID)
	if err != nil {
		return err
	}
	if consent.Kind != domain.ConsentKindAccountAccess {
		return fmt.Errorf("%w: consent %s is not an account access consent", ErrPreconditionFailed, consentID)
	}

	grant, err := s.Bank.ClientCredentialsGrant(ctx, ScopeAccounts)
	if err != nil {
		return fmt.Errorf("client credentials grant: %w", err)
	}

	if err := s.Bank.DeleteAccountAccessConsent(ctx, grant.AccessToken, consentID); err != nil {
		return fmt.Errorf("delete consent at bank: %w", err)
	}

	if err := s.Store.Consents().UpdateConsentStatus(ctx, consentID, domain.ConsentStatusRevoked); err != nil {
		return err
	}

	log.Info("account access consent revoked", "consent_id", consentID)
	return nil
}
