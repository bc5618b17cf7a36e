package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingSHA2FastAuthMatchesReferenceScramble(t *testing.T) {
	password := []byte("pw")
	nonce := []byte("01234567890123456789")[:20]

	got := CachingSHA2FastAuth(password, nonce)

	stage1 := sha256.Sum256(password)
	stage2 := sha256.Sum256(stage1[:])
	h := sha256.New()
	h.Write(stage2[:])
	h.Write(nonce)
	stage3 := h.Sum(nil)

	want := make([]byte, len(stage1))
	for i := range want {
		want[i] = stage1[i] ^ stage3[i]
	}

	assert.Equal(t, want, got)
}

func TestEncryptFullAuthPasswordRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	nonce := []byte("0123456789012345678901234567890123456789")
	ciphertext, err := EncryptFullAuthPassword([]byte("pw"), nonce, pubPEM)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)

	plain, err := rsa.DecryptOAEP(sha1Hash(), nil, priv, ciphertext, nil)
	require.NoError(t, err)

	want := xorWithRepeatingNonce([]byte("pw"), nonce)
	assert.Equal(t, want, plain)
}
