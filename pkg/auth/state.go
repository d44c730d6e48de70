package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// stateLength is the number of random bytes behind each state value (256 bits).
const stateLength = 32

// GenerateState creates a random, URL-safe state string.
func GenerateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
