// Package auth implements the two password authentication plugins this
// client speaks: mysql_native_password and caching_sha2_password.
package auth

import (
	"crypto/sha1"
)

// NativePassword computes the mysql_native_password auth response: the
// classic triple-SHA1 scramble. Grounded on the teacher's util/password.go
// GetPassword, which computes the identical stage1/stage2/stage3 hash
// chain for the same purpose; renamed and scoped to a single nonce
// argument since a client never has a "rest of scramble buffer" to append.
//
//	stage1 = SHA1(password)
//	stage2 = SHA1(stage1)
//	stage3 = SHA1(nonce || stage2)
//	token  = stage1 XOR stage3
func NativePassword(password []byte, nonce []byte) []byte {
	if len(password) == 0 {
		return nil
	}

	stage1 := sha1.Sum(password)

	stage2 := sha1.Sum(stage1[:])

	h := sha1.New()
	h.Write(nonce)
	h.Write(stage2[:])
	stage3 := h.Sum(nil)

	token := make([]byte, len(stage1))
	for i := range token {
		token[i] = stage1[i] ^ stage3[i]
	}
	return token
}
