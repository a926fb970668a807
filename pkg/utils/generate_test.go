package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConfirmationCode(t *testing.T) {
	format := regexp.MustCompile(`^[0-9A-F]{12}$`)
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		code, err := GenerateConfirmationCode()
		require.NoError(t, err)
		assert.Regexp(t, format, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
