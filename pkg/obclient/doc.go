/*
Package obclient is a client for a bank's Open Banking (OBIE) API surface.

# Overview

The package covers the three endpoint families the flows need:

  - Token endpoint: client_credentials, authorization_code and
    refresh_token grants over mTLS
  - Consents: account access consents and domestic payment consents
  - Resources: accounts, balances, transactions, beneficiaries and
    domestic payments

Every request goes out over an mTLS http.Client supplied by the caller,
and every resource request carries the x-fapi-financial-id header.
Payment writes additionally carry x-idempotency-key and a detached
x-jws-signature computed over the exact request bytes.

# Token handling

Resource calls authenticate with a TokenSource, which owns the current
user token set and refreshes it transparently. When the bank returns
401 despite a token the source considered valid, the client asks the
source for one refresh and replays the request exactly once; a second
401 surfaces as ErrAuthentication.

Consent creation uses short-lived client-credentials tokens instead,
which the caller obtains explicitly:

	tok, err := client.ClientCredentialsGrant(ctx, "openid accounts")
	consent, err := client.CreateAccountAccessConsent(ctx, tok.AccessToken, req)

# Error handling

Non-2xx responses become *APIError with the bank's error code and
message. Two classifications matter to callers:

  - errors.Is(err, ErrInsufficientFunds): the bank's code 1006 on a
    payment submission
  - errors.Is(err, ErrAuthentication): credentials rejected even after a
    refresh, the consent flow must restart
*/
package obclient
