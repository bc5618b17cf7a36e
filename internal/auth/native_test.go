package auth

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNativePasswordMatchesReferenceScramble(t *testing.T) {
	password := []byte("pw")
	nonce := []byte("01234567890123456789")[:20]

	got := NativePassword(password, nonce)

	stage1 := sha1.Sum(password)
	stage2 := sha1.Sum(stage1[:])
	h := sha1.New()
	h.Write(nonce)
	h.Write(stage2[:])
	stage3 := h.Sum(nil)

	want := make([]byte, len(stage1))
	for i := range want {
		want[i] = stage1[i] ^ stage3[i]
	}

	assert.Equal(t, want, got)
}

func TestNativePasswordEmptyPassword(t *testing.T) {
	assert.Nil(t, NativePassword(nil, []byte("nonce")))
}
