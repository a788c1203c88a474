// File: internal/platform/crypto/generator.go
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSecureRandomString returns a URL-safe token built from n bytes of
// crypto/rand entropy. It backs OAuth state values and the unusable secrets
// of provider-created accounts, so the encoding is unpadded: the value must
// survive cookies and query strings without escaping.
func GenerateSecureRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token entropy must be positive, got %d bytes", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
