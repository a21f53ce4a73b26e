// Package password derives and verifies credential hashes with
// PBKDF2-HMAC-SHA256. Salt and hash travel as hex strings so they can be
// stored in plain text columns.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 100_000
	saltLen    = 16
	keyLen     = 32
)

// Derive produces a fresh salt and the derived hash for a plaintext password.
func Derive(plaintext string) (salt, hash string, err error) {
	raw := make([]byte, saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plaintext), raw, iterations, keyLen, sha256.New)
	return hex.EncodeToString(raw), hex.EncodeToString(key), nil
}

// Verify reports whether plaintext matches the stored salt/hash pair.
// Malformed stored material verifies as false rather than erroring.
func Verify(salt, hash, plaintext string) bool {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	rawHash, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(plaintext), rawSalt, iterations, keyLen, sha256.New)
	return subtle.ConstantTimeCompare(key, rawHash) == 1
}
