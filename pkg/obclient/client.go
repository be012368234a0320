package obclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hoope/openbanking/pkg/httpx"
)

// TokenSource supplies user access tokens for resource calls. Token must
// return a currently valid token, refreshing transparently if needed.
// Refresh invalidates staleAccess and returns a replacement; callers use
// it when the bank rejects a token the source still thought was valid.
// Implementations must serialize refreshes so concurrent callers share a
// single token exchange.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context, staleAccess string) (string, error)
}

// PayloadSigner produces detached JWS values over exact request bytes.
type PayloadSigner interface {
	SignDetached(payload []byte) (string, error)
}

// Config wires a Client. Hosts and identifiers all come from
// configuration; nothing bank-specific is baked in.
type Config struct {
	// AuthBaseURL hosts the token endpoint and the hosted authorization UI,
	// e.g. https://sandbox-oba-auth.revolut.com
	AuthBaseURL string
	// ResourceBaseURL hosts consents, accounts and payments,
	// e.g. https://sandbox-oba.revolut.com
	ResourceBaseURL string

	ClientID     string
	ClientSecret string // optional; enables HTTP Basic on code/refresh grants
	FinancialID  string // x-fapi-financial-id header value

	// HTTPClient must carry the mTLS transport certificate. Required.
	HTTPClient *http.Client

	Tokens  TokenSource          // required for resource and payment calls
	Signer  PayloadSigner        // required for payment writes
	Limiter *httpx.OutboundLimiter // optional outbound pacing
}

// Client talks to one bank's Open Banking API surface.
type Client struct {
	authBaseURL     string
	resourceBaseURL string
	clientID        string
	clientSecret    string
	financialID     string

	httpClient *http.Client
	tokens     TokenSource
	signer     PayloadSigner
	limiter    *httpx.OutboundLimiter
}

// New validates the config and builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.AuthBaseURL == "" || cfg.ResourceBaseURL == "" {
		return nil, errors.New("obclient: auth and resource base URLs are required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("obclient: client id is required")
	}
	if cfg.FinancialID == "" {
		return nil, errors.New("obclient: financial id is required")
	}
	if cfg.HTTPClient == nil {
		return nil, errors.New("obclient: an mTLS http client is required")
	}

	return &Client{
		authBaseURL:     cfg.AuthBaseURL,
		resourceBaseURL: cfg.ResourceBaseURL,
		clientID:        cfg.ClientID,
		clientSecret:    cfg.ClientSecret,
		financialID:     cfg.FinancialID,
		httpClient:      cfg.HTTPClient,
		tokens:          cfg.Tokens,
		signer:          cfg.Signer,
		limiter:         cfg.Limiter,
	}, nil
}

// newResourceRequest builds a resource-host request with the FAPI headers
// every Open Banking call needs.
func (c *Client) newResourceRequest(
	ctx context.Context,
	method, path, bearer string,
	body []byte,
	extra http.Header,
) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resourceBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("x-fapi-financial-id", c.financialID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	return req, nil
}

// send pushes a request through the outbound limiter and reads the body.
func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp, body, nil
}

// doResource performs a resource call with an explicit bearer token.
func (c *Client) doResource(
	ctx context.Context,
	method, path, bearer string,
	body []byte,
	extra http.Header,
	out any,
) error {
	req, err := c.newResourceRequest(ctx, method, path, bearer, body, extra)
	if err != nil {
		return err
	}

	resp, respBody, err := c.send(req)
	if err != nil {
		return err
	}

	if err := parseErrorResponse(resp, respBody); err != nil {
		return err
	}
	return decodeInto(respBody, out)
}

// doUser performs a resource call authenticated by the token source.
//
// 401 discipline: refresh the token exactly once and replay the original
// request (same body, same idempotency key); a second 401 means the
// connection is dead and surfaces as ErrAuthentication.
func (c *Client) doUser(
	ctx context.Context,
	method, path string,
	body []byte,
	extra http.Header,
	out any,
) error {
	if c.tokens == nil {
		return errors.New("obclient: no token source configured")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token source: %w", err)
	}

	req, err := c.newResourceRequest(ctx, method, path, token, body, extra)
	if err != nil {
		return err
	}

	resp, respBody, err := c.send(req)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		token, err = c.tokens.Refresh(ctx, token)
		if err != nil {
			return fmt.Errorf("%w: refresh after 401: %v", ErrAuthentication, err)
		}

		req, err = c.newResourceRequest(ctx, method, path, token, body, extra)
		if err != nil {
			return err
		}

		resp, respBody, err = c.send(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: token rejected after refresh", ErrAuthentication)
		}
	}

	if err := parseErrorResponse(resp, respBody); err != nil {
		return err
	}
	return decodeInto(respBody, out)
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
