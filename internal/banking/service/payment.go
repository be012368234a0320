package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/internal/banking/tokenstore"
	"github.com/hoope/openbanking/pkg/idx"
	"github.com/hoope/openbanking/pkg/obclient"
	"github.com/hoope/openbanking/pkg/slogx"
)

// PaymentService runs the domestic payment flow: normalize and sign the
// instruction, register a payment consent, send the user to authorise
// it, then submit the payment against the authorised consent.
type PaymentService struct {
	Store  store.Store
	Bank   BankClient
	Tokens *tokenstore.TokenStore
	Signer RequestSigner
	Broker *CallbackBroker
	Flow   flowConfig

	// Risk rides along on consent and submission. Both must carry the
	// same block or the bank rejects the submission.
	Risk obclient.Risk
}

// NewPaymentService wires a payment flow.
func NewPaymentService(
	st store.Store,
	bank BankClient,
	tokens *tokenstore.TokenStore,
	signer RequestSigner,
	broker *CallbackBroker,
	clientID, redirectURI, authBaseURL string,
	risk obclient.Risk,
) *PaymentService {
	return &PaymentService{
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
		Risk: risk,
	}
}

// Start validates the instruction, registers a payment consent with the
// bank and returns the URL the user must visit to authorise it. The
// amount is normalized before anything is marshaled or signed, and the
// idempotency key for the whole logical attempt is minted here.
func (s *PaymentService) Start(ctx context.Context, instr domain.PaymentInstruction) (*AuthorizationPrompt, error) {
	log := slogx.FromContext(ctx)

	amount, err := domain.NormalizeAmount(instr.Amount)
	if err != nil {
		return nil, err
	}
	instr.Amount = amount

	if instr.Currency == "" {
		instr.Currency = "GBP"
	}
	if instr.InstructionID == "" {
		instr.InstructionID = idx.New().String()
	}
	if instr.EndToEndID == "" {
		instr.EndToEndID = idx.New().String()
	}
	if instr.CreditorSchemeName == "" || instr.CreditorID == "" {
		return nil, fmt.Errorf("%w: creditor scheme and identification are required", ErrPreconditionFailed)
	}

	idempotencyKey := idx.New().String()

	grant, err := s.Bank.ClientCredentialsGrant(ctx, ScopePayments)
	if err != nil {
		return nil, fmt.Errorf("client credentials grant: %w", err)
	}

	req := obclient.PaymentConsentRequest{
		Data: obclient.PaymentConsentData{
			Initiation: initiationFor(instr),
		},
		Risk: s.Risk,
	}

	resp, err := s.Bank.CreateDomesticPaymentConsent(ctx, grant.AccessToken, req, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("create payment consent: %w", err)
	}

	consent := domain.Consent{
		ID:             resp.Data.ConsentID,
		Kind:           domain.ConsentKindDomesticPayment,
		Status:         resp.Data.Status,
		Scope:          ScopePayments,
		Instruction:    &instr,
		IdempotencyKey: idempotencyKey,
	}
	if resp.Data.ExpirationDateTime != nil {
		consent.ExpiresAt = *resp.Data.ExpirationDateTime
	}
	if err := s.Store.Consents().CreateConsent(ctx, consent); err != nil {
		return nil, err
	}

	authorizeURL, err := s.Flow.authorizeURL(s.Signer, ScopePayments, consent.ID)
	if err != nil {
		return nil, err
	}

	log.Info("payment consent created",
		"consent_id", consent.ID,
		"status", consent.Status,
		"amount", instr.Amount,
		"currency", instr.Currency)
	return &AuthorizationPrompt{
		ConsentID:    consent.ID,
		Status:       consent.Status,
		AuthorizeURL: authorizeURL,
	}, nil
}

// Complete finishes the authorization from the redirect URL.
func (s *PaymentService) Complete(ctx context.Context, callbackURL string) (domain.Consent, error) {
	return completeAuthorization(ctx, s.Store, s.Bank, s.Tokens, callbackURL)
}

// Initiate submits the payment for an authorised consent. Preconditions
// are checked locally first: the consent must exist, be a payment
// consent in Authorised status, and a user token set must be stored.
// Nothing is sent to the bank when a precondition fails.
//
// The submission reuses the idempotency key minted at Start, so the
// 401-triggered retry and any caller-level retry collapse onto one
// payment at the bank.
func (s *PaymentService) Initiate(ctx context.Context, consentID string) (*domain.PaymentResult, error) {
	log := slogx.FromContext(ctx)

	consent, err := s.Store.Consents().GetConsentByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: consent %s not found", ErrPreconditionFailed, consentID)
		}
		return nil, err
	}

	if consent.Kind != domain.ConsentKindDomesticPayment {
		return nil, fmt.Errorf("%w: consent %s is not a payment consent", ErrPreconditionFailed, consentID)
	}
	if !consent.Authorised() {
		return nil, fmt.Errorf("%w: consent %s is %s, not authorised", ErrPreconditionFailed, consentID, consent.Status)
	}
	if consent.Instruction == nil {
		return nil, fmt.Errorf("%w: consent %s carries no payment instruction", ErrPreconditionFailed, consentID)
	}
	if _, err := s.Tokens.Get(); err != nil {
		return nil, fmt.Errorf("%w: no user token set stored", ErrPreconditionFailed)
	}

	req := obclient.PaymentRequest{
		Data: obclient.PaymentData{
			ConsentID:  consent.ID,
			Initiation: initiationFor(*consent.Instruction),
		},
		Risk: s.Risk,
	}

	resp, err := s.Bank.InitiateDomesticPayment(ctx, req, consent.IdempotencyKey)
	if err != nil {
		if errors.Is(err, obclient.ErrInsufficientFunds) {
			log.Warn("payment rejected for insufficient funds", "consent_id", consent.ID)
		}
		return nil, err
	}

	if err := s.Store.Consents().UpdateConsentStatus(ctx, consent.ID, domain.ConsentStatusConsumed); err != nil {
		return nil, err
	}

	result := &domain.PaymentResult{
		DomesticPaymentID: resp.Data.DomesticPaymentID,
		ConsentID:         resp.Data.ConsentID,
		Status:            resp.Data.Status,
	}
	if resp.Data.CreationDateTime != nil {
		result.CreatedAt = *resp.Data.CreationDateTime
	}

	log.Info("payment initiated",
		"consent_id", consent.ID,
		"payment_id", result.DomesticPaymentID,
		"status", result.Status)
	return result, nil
}

// Run sequences the whole flow: start, wait for the redirect, complete,
// initiate. It blocks until the user acts or ctx expires.
func (s *PaymentService) Run(ctx context.Context, instr domain.PaymentInstruction) (*domain.PaymentResult, error) {
	prompt, err := s.Start(ctx, instr)
	if err != nil {
		return nil, err
	}

	cb, err := s.Broker.Await(ctx, prompt.ConsentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.Complete(ctx, cb.RawURL); err != nil {
		return nil, err
	}

	return s.Initiate(ctx, prompt.ConsentID)
}

// initiationFor maps a validated instruction onto the wire block shared
// by consent and submission.
func initiationFor(instr domain.PaymentInstruction) obclient.Initiation {
	init := obclient.Initiation{
		InstructionIdentification: instr.InstructionID,
		EndToEndIdentification:    instr.EndToEndID,
		InstructedAmount: obclient.Amount{
			Amount:   instr.Amount,
			Currency: instr.Currency,
		},
		CreditorAccount: obclient.CreditorAccount{
			SchemeName:     instr.CreditorSchemeName,
			Identification: instr.CreditorID,
			Name:           instr.CreditorName,
		},
	}
	if instr.Reference != "" {
		init.RemittanceInformation = &obclient.RemittanceInfo{Unstructured: instr.Reference}
	}
	return init
}
