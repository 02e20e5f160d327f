// Package apikey generates and digests actor API keys. Keys are random
// bearer tokens shown once at creation; only the SHA-256 digest is stored,
// so a database leak does not leak usable credentials.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const prefix = "usr_"

// Generate returns a fresh API key and its storage digest.
func Generate() (key, digest string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	key = prefix + base64.RawURLEncoding.EncodeToString(raw)
	return key, Digest(key), nil
}

// Digest returns the storage digest for a presented key.
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
