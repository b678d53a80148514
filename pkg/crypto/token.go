package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// resetTokenBytes gives 256 bits of entropy per token.
const resetTokenBytes = 32

// GenerateResetToken returns a hex-encoded random token for password resets.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
