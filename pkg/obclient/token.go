package obclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ClientCredentialsGrant requests a TPP access token for the given scope,
// e.g. "openid accounts" for consent creation or "openid payments" for
// payment consents. The mTLS transport certificate authenticates us, so
// no secret goes in the form.
func (c *Client) ClientCredentialsGrant(ctx context.Context, scope string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"client_credentials"},
		"client_id":  {c.clientID},
	}
	if scope != "" {
		data.Set("scope", scope)
	}

	return c.requestToken(ctx, data, false)
}

// ExchangeAuthorizationCode redeems the code delivered on the redirect
// for the user token set. Uses HTTP Basic client authentication when a
// client secret is configured.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	}

	return c.requestToken(ctx, data, true)
}

// RefreshGrant requests new tokens using a refresh token.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
	}

	return c.requestToken(ctx, data, true)
}

func (c *Client) requestToken(ctx context.Context, data url.Values, basicAuth bool) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.authBaseURL+"/token",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicAuth && c.clientSecret != "" {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}

	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}

	if err := parseErrorResponse(resp, body); err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access token")
	}

	return &tokenResp, nil
}
