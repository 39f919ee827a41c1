package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// TokenValueBytes is the entropy of a generated token value (256 bits).
const TokenValueBytes = 32

// GenerateTokenValue reads TokenValueBytes from r and encodes them as unpadded base64url.
// Pass nil to use crypto/rand.
func GenerateTokenValue(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, TokenValueBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
