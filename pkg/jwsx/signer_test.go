package jwsx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hoope/openbanking/pkg/jwsx"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) (*jwsx.Signer, *rsa.PrivateKey) {
	t.Helper()

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privKey),
	})

	signer, err := jwsx.NewSigner("test-kid", "jwks.example.com", privPEM)
	require.NoError(t, err)
	return signer, privKey
}

func TestNewSignerRejectsBadInput(t *testing.T) {
	t.Parallel()

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privKey),
	})

	t.Run("empty kid", func(t *testing.T) {
		_, err := jwsx.NewSigner("", "jwks.example.com", privPEM)
		require.Error(t, err)
	})

	t.Run("empty tan", func(t *testing.T) {
		_, err := jwsx.NewSigner("kid", "", privPEM)
		require.Error(t, err)
	})

	t.Run("garbage PEM", func(t *testing.T) {
		_, err := jwsx.NewSigner("kid", "jwks.example.com", []byte("not pem"))
		require.Error(t, err)
	})
}

func TestNewSignerAcceptsPKCS8(t *testing.T) {
	t.Parallel()

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(privKey)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	signer, err := jwsx.NewSigner("kid", "jwks.example.com", privPEM)
	require.NoError(t, err)
	require.Equal(t, "kid", signer.KID())
}

func TestSignDetachedShapeAndVerify(t *testing.T) {
	t.Parallel()

	signer, _ := newTestSigner(t)
	payload := []byte(`{"Data":{"Initiation":{"InstructedAmount":{"Amount":"250.50","Currency":"GBP"}}}}`)

	detached, err := signer.SignDetached(payload)
	require.NoError(t, err)

	parts := strings.Split(detached, ".")
	require.Len(t, parts, 3)
	require.Empty(t, parts[1], "payload segment must be detached")
	require.NotEmpty(t, parts[0])
	require.NotEmpty(t, parts[2])

	// Header carries the OBIE crit + tan claims.
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)

	var header map[string]any
	require.NoError(t, json.Unmarshal(headerJSON, &header))
	require.Equal(t, "JOSE", header["typ"])
	require.Equal(t, "PS256", header["alg"])
	require.Equal(t, "test-kid", header["kid"])
	require.Equal(t, []any{jwsx.TanCritHeader}, header["crit"])
	require.Equal(t, "jwks.example.com", header[jwsx.TanCritHeader])

	require.NoError(t, jwsx.VerifyDetached(detached, payload, signer.PublicKey()))
}

func TestVerifyDetachedRejectsWrongPayload(t *testing.T) {
	t.Parallel()

	signer, _ := newTestSigner(t)

	detached, err := signer.SignDetached([]byte(`{"Amount":"250.50"}`))
	require.NoError(t, err)

	err = jwsx.VerifyDetached(detached, []byte(`{"Amount":"999.99"}`), signer.PublicKey())
	require.Error(t, err)
}

func TestSignAuthRequestClaims(t *testing.T) {
	t.Parallel()

	signer, privKey := newTestSigner(t)
	now := time.Unix(1700000000, 0).UTC()

	signed, err := signer.SignAuthRequest(jwsx.AuthRequest{
		ClientID:    "client-123",
		RedirectURI: "https://app.example/callback",
		Scope:       "payments",
		State:       "consent-abc",
		ConsentID:   "consent-abc",
	}, now)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		require.Equal(t, "PS256", token.Method.Alg())
		require.Equal(t, "test-kid", token.Header["kid"])
		return &privKey.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "code id_token", claims["response_type"])
	require.Equal(t, "client-123", claims["client_id"])
	require.Equal(t, "https://app.example/callback", claims["redirect_uri"])
	require.Equal(t, "payments", claims["scope"])
	require.Equal(t, "consent-abc", claims["state"])

	// exp - iat must match the default 5 minute TTL.
	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	require.Equal(t, int64(300), exp-iat)

	idToken := claims["claims"].(map[string]any)["id_token"].(map[string]any)
	intent := idToken["openbanking_intent_id"].(map[string]any)
	require.Equal(t, "consent-abc", intent["value"])
	require.Equal(t, true, intent["essential"])

	acr := idToken["acr"].(map[string]any)
	require.Equal(t, true, acr["essential"])
	require.Equal(t, []any{"urn:openbanking:psd2:sca"}, acr["values"])
}

func TestSignAuthRequestValidation(t *testing.T) {
	t.Parallel()

	signer, _ := newTestSigner(t)

	_, err := signer.SignAuthRequest(jwsx.AuthRequest{
		RedirectURI: "https://app.example/callback",
		ConsentID:   "consent-abc",
	}, time.Now())
	require.Error(t, err)

	_, err = signer.SignAuthRequest(jwsx.AuthRequest{
		ClientID:    "client-123",
		RedirectURI: "https://app.example/callback",
	}, time.Now())
	require.Error(t, err)
}
