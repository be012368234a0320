package obclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// CreateAccountAccessConsent registers an account access consent with the
// bank. The bearer must be a client-credentials token with accounts
// scope; the user authorizes the returned consent afterwards.
func (c *Client) CreateAccountAccessConsent(
	ctx context.Context,
	bearer string,
	req AccountAccessConsentRequest,
) (*ConsentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal consent request: %w", err)
	}

	var out ConsentResponse
	if err := c.doResource(ctx, http.MethodPost, "/account-access-consents", bearer, body, nil, &out); err != nil {
		return nil, err
	}
	if out.Data.ConsentID == "" {
		return nil, errors.New("obclient: consent response carried no ConsentId")
	}
	return &out, nil
}

// DeleteAccountAccessConsent revokes an account access consent at the bank.
func (c *Client) DeleteAccountAccessConsent(ctx context.Context, bearer, consentID string) error {
	return c.doResource(ctx, http.MethodDelete, "/account-access-consents/"+consentID, bearer, nil, nil, nil)
}

// CreateDomesticPaymentConsent registers a payment consent. The marshaled
// body is signed with a detached JWS and sent byte-identical to what was
// signed. idempotencyKey must be the one minted for the logical payment
// attempt so bank-side retries collapse onto one consent.
func (c *Client) CreateDomesticPaymentConsent(
	ctx context.Context,
	bearer string,
	req PaymentConsentRequest,
	idempotencyKey string,
) (*ConsentResponse, error) {
	if c.signer == nil {
		return nil, errors.New("obclient: no payload signer configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment consent: %w", err)
	}

	jws, err := c.signer.SignDetached(body)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment consent: %w", err)
	}

	headers := http.Header{}
	headers.Set("x-idempotency-key", idempotencyKey)
	headers.Set("x-jws-signature", jws)

	var out ConsentResponse
	if err := c.doResource(ctx, http.MethodPost, "/domestic-payment-consents", bearer, body, headers, &out); err != nil {
		return nil, err
	}
	if out.Data.ConsentID == "" {
		return nil, errors.New("obclient: consent response carried no ConsentId")
	}
	return &out, nil
}

// GetDomesticPaymentConsent reads back a payment consent's current status.
func (c *Client) GetDomesticPaymentConsent(ctx context.Context, bearer, consentID string) (*ConsentResponse, error) {
	var out ConsentResponse
	if err := c.doResource(ctx, http.MethodGet, "/domestic-payment-consents/"+consentID, bearer, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
