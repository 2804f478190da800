// Package apikey generates and hashes opaque bearer tokens for the
// admin API. Only the SHA-256 hash of a key is ever stored; the
// plaintext is shown once at creation time.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// KeyPrefix tags every formakit API key.
	KeyPrefix = "fmk_"
	// randomBytes of entropy per key; hex-encoded in the key body.
	randomBytes = 32
	// displayLength is how much of a key is safe to show for
	// identification without revealing the secret.
	displayLength = 14
)

// Generate returns a new opaque API key.
func Generate() (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// Hash returns the hex SHA-256 digest of a key, the only form that is
// persisted.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the leading characters of a key, including the
// tag, for display in key listings.
func DisplayPrefix(key string) string {
	if len(key) < displayLength {
		return key
	}
	return key[:displayLength]
}

// ValidFormat checks the shape of a key before any store lookup.
func ValidFormat(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) {
		return false
	}
	hexPart := strings.TrimPrefix(key, KeyPrefix)
	if len(hexPart) != randomBytes*2 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// CompareHash compares a key against a stored hash in constant time.
func CompareHash(key, storedHash string) bool {
	computed := Hash(key)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
