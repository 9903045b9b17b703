// Package random produces unguessable tokens.
package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Token returns n random bytes encoded as URL-safe base64 without padding.
func Token(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
