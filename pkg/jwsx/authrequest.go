package jwsx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRequestTTL bounds how long a signed authorization request stays
// redeemable at the bank.
const DefaultRequestTTL = 5 * time.Minute

// AuthRequest carries the parameters for a signed OIDC request object.
// The bank's hosted UI reads the consent to authorize out of the
// openbanking_intent_id claim.
type AuthRequest struct {
	ClientID    string
	RedirectURI string
	Scope       string // e.g. "accounts", "payments", "openid payments"
	State       string
	ConsentID   string
	TTL         time.Duration // zero means DefaultRequestTTL
}

// SignAuthRequest mints the request= JWT for a bank authorization URL.
// Claims follow the OBIE security profile: the intent id and SCA acr are
// marked essential so the bank must honour them or reject the request.
func (s *Signer) SignAuthRequest(req AuthRequest, now time.Time) (string, error) {
	if req.ClientID == "" || req.RedirectURI == "" {
		return "", errors.New("jwsx: auth request needs client_id and redirect_uri")
	}
	if req.ConsentID == "" {
		return "", errors.New("jwsx: auth request needs a consent id")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}

	now = now.UTC()
	claims := jwt.MapClaims{
		"iss":           req.ClientID,
		"aud":           req.ClientID,
		"response_type": "code id_token",
		"client_id":     req.ClientID,
		"redirect_uri":  req.RedirectURI,
		"scope":         req.Scope,
		"state":         req.State,
		"iat":           now.Unix(),
		"exp":           now.Add(ttl).Unix(),
		"claims": map[string]any{
			"id_token": map[string]any{
				"openbanking_intent_id": map[string]any{
					"value":     req.ConsentID,
					"essential": true,
				},
				"acr": map[string]any{
					"essential": true,
					"values":    []string{"urn:openbanking:psd2:sca"},
				},
			},
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodPS256, claims)
	t.Header["kid"] = s.kid

	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwsx: sign auth request: %w", err)
	}
	return signed, nil
}
