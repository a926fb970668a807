package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// confirmationCodeBytes gives 12 hex characters.
const confirmationCodeBytes = 6

// GenerateConfirmationCode returns a random upper-case hex code shown to the tourist.
func GenerateConfirmationCode() (string, error) {
	buf := make([]byte, confirmationCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
