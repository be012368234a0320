package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("OB_MASTER_KEY", "test-master-key-material")

	plaintext := []byte("access-token-value")

	sealed, err := Seal(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	opened, err := Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSealProducesFreshNonce(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("OB_MASTER_KEY", "test-master-key-material")

	a, err := Seal([]byte("same input"))
	require.NoError(t, err)
	b, err := Seal([]byte("same input"))
	require.NoError(t, err)

	// Same plaintext must never produce the same ciphertext.
	require.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("OB_MASTER_KEY", "test-master-key-material")

	sealed, err := Seal([]byte("refresh-token-value"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF

	_, err = Open(sealed)
	require.Error(t, err)
}

func TestOpenRejectsShortInput(t *testing.T) {
	ResetMasterKeyForTesting()
	t.Setenv("OB_MASTER_KEY", "test-master-key-material")

	_, err := Open([]byte("short"))
	require.Error(t, err)
}

func TestFingerprintTokenIsDeterministic(t *testing.T) {
	a := FingerprintToken("token-value")
	b := FingerprintToken("token-value")
	c := FingerprintToken("other-value")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 43)
}
