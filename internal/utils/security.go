package contextutils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MaskToken masks a secret for logging purposes to prevent exposure
// Returns a masked version that shows only first 4 and last 4 characters
func MaskToken(token string) string {
	if token == "" {
		return "[EMPTY]"
	}

	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}

	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// RandomToken returns a hex encoded token built from n random bytes.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", WrapError(err, "failed to generate random token")
	}
	return hex.EncodeToString(b), nil
}
