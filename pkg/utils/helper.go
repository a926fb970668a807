package utils

import (
	"strconv"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// ParseCount is ParseInt for counters where zero is a legal value.
func ParseCount(value string) (int, bool) {
	if value == "" {
		return 0, true
	}

	result, err := strconv.Atoi(value)
	if err != nil || result < 0 {
		return 0, false
	}

	return result, true
}
