package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateRandomString returns a URL-safe random string built from n bytes
// of crypto/rand entropy. n must be at least 16 (128 bits).
func GenerateRandomString(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("random string too short: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
