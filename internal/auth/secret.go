package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const refreshSecretBytes = 32

// NewRefreshSecret returns a random refresh secret and the hash to persist.
// The raw value is handed to the client once and must never be stored.
func NewRefreshSecret() (string, string, error) {
	raw := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, HashRefreshSecret(token), nil
}

func HashRefreshSecret(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
