// Package jwsx signs Open Banking request material with PS256.
//
// It produces the two signature artefacts the OBIE flows need: detached
// JWS values for the x-jws-signature header on payment writes, and the
// signed request object JWT embedded in bank authorization URLs.
package jwsx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TanCritHeader is the OBIE critical header naming the trust anchor that
// hosts the signing key's JWKS.
const TanCritHeader = "http://openbanking.org.uk/tan"

// Signer signs payloads and request objects with a PS256 key registered
// with the bank under kid.
type Signer struct {
	kid string
	tan string // JWKS host, goes into the tan crit header
	key *rsa.PrivateKey
	pub *rsa.PublicKey
}

// NewSigner loads an RSA private key from PEM bytes. Handles both
// PKCS1 and PKCS8 because otherwise we will be chasing a bug for longer
// than we would be willing to admit.
func NewSigner(kid, tan string, pemKey []byte) (*Signer, error) {
	if kid == "" {
		return nil, errors.New("jwsx: kid must not be empty")
	}
	if tan == "" {
		return nil, errors.New("jwsx: tan must not be empty")
	}

	key, err := parseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}

	return &Signer{
		kid: kid,
		tan: tan,
		key: key,
		pub: &key.PublicKey,
	}, nil
}

func parseRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwsx: invalid PEM for RSA key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwsx: parse PKCS1: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwsx: parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwsx: not RSA private key")
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("jwsx: unsupported PEM type %q", block.Type)
	}
}

// KID returns the key identifier the signer was built with.
func (s *Signer) KID() string { return s.kid }

// PublicKey returns the verification half of the signing key.
func (s *Signer) PublicKey() *rsa.PublicKey { return s.pub }

// SignDetached produces a detached JWS over payload, serialized as
// header..signature with the payload segment omitted. The bank
// reconstructs the signing input from the request body, so the exact
// bytes passed here MUST be the exact bytes sent on the wire.
func (s *Signer) SignDetached(payload []byte) (string, error) {
	header := map[string]any{
		"typ":         "JOSE",
		"alg":         "PS256",
		"kid":         s.kid,
		"crit":        []string{TanCritHeader},
		TanCritHeader: s.tan,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("jwsx: marshal header: %w", err)
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)

	signature, err := jwt.SigningMethodPS256.Sign(encodedHeader+"."+encodedPayload, s.key)
	if err != nil {
		return "", fmt.Errorf("jwsx: sign: %w", err)
	}

	return encodedHeader + ".." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// VerifyDetached checks a detached JWS against the payload it claims to
// cover. Mostly here so tests can prove SignDetached round-trips.
func VerifyDetached(detached string, payload []byte, pub *rsa.PublicKey) error {
	parts := strings.Split(detached, ".")
	if len(parts) != 3 {
		return errors.New("jwsx: detached JWS must have three segments")
	}
	if parts[1] != "" {
		return errors.New("jwsx: detached JWS must omit the payload segment")
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("jwsx: decode signature: %w", err)
	}

	signingInput := parts[0] + "." + base64.RawURLEncoding.EncodeToString(payload)
	if err := jwt.SigningMethodPS256.Verify(signingInput, signature, pub); err != nil {
		return fmt.Errorf("jwsx: verify: %w", err)
	}
	return nil
}
