package webhookguard

import (
	"crypto/rand"
	"encoding/hex"
)

const tokenByteLength = 32

// GenerateToken returns a cryptographically random 64-character hex token for
// authenticating inbound calls from a registered webhook.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
