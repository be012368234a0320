package obclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// InitiateDomesticPayment submits a payment against an authorised
// consent, authenticated with the user token set. The body is signed
// with a detached JWS over its exact bytes.
//
// idempotencyKey must be the key minted when the payment attempt was
// created. The single 401-triggered retry inside doUser replays the same
// key, so the bank sees one logical submission.
//
// A bank rejection with code 1006 satisfies
// errors.Is(err, ErrInsufficientFunds).
func (c *Client) InitiateDomesticPayment(
	ctx context.Context,
	req PaymentRequest,
	idempotencyKey string,
) (*PaymentResponse, error) {
	if c.signer == nil {
		return nil, errors.New("obclient: no payload signer configured")
	}
	if req.Data.ConsentID == "" {
		return nil, errors.New("obclient: payment request needs a ConsentId")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	jws, err := c.signer.SignDetached(body)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment request: %w", err)
	}

	headers := http.Header{}
	headers.Set("x-idempotency-key", idempotencyKey)
	headers.Set("x-jws-signature", jws)

	var out PaymentResponse
	if err := c.doUser(ctx, http.MethodPost, "/domestic-payments", body, headers, &out); err != nil {
		return nil, err
	}
	if out.Data.DomesticPaymentID == "" {
		return nil, errors.New("obclient: payment response carried no DomesticPaymentId")
	}
	return &out, nil
}

// GetDomesticPayment reads back a submitted payment's current status.
func (c *Client) GetDomesticPayment(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	var out PaymentResponse
	if err := c.doUser(ctx, http.MethodGet, "/domestic-payments/"+paymentID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
