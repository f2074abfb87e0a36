package notification

import (
	"fmt"
	"strings"
)

// NormalizePhone rewrites a phone number to a single international format:
// a local number starting with "0" is rewritten to the country prefix, a
// number already carrying a leading "+" passes through unchanged, anything
// else gets the prefix prepended.
func NormalizePhone(raw, countryPrefix string) (string, error) {
	number := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if number == "" {
		return "", fmt.Errorf("%w: empty phone number", ErrInvalidRecipient)
	}

	switch {
	case strings.HasPrefix(number, "+"):
		return number, nil
	case strings.HasPrefix(number, "0"):
		return countryPrefix + number[1:], nil
	default:
		return countryPrefix + number, nil
	}
}
