package otp

import (
	"errors"
	"strings"
)

// ErrInvalidPhoneNumber is returned before any state mutation when a submitted
// number cannot be canonicalized.
var ErrInvalidPhoneNumber = errors.New("otp: invalid phone number")

const countryCode = "966"

// NormalizePhone canonicalizes a Saudi mobile number to its international
// digit form, e.g. "0555552022" and "555552022" both become "966555552022".
// The canonical form is what gets persisted, so repeated calls for the same
// subscriber always hit the same records.
func NormalizePhone(raw string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" || !isDigits(s) {
		return "", ErrInvalidPhoneNumber
	}

	// Reduce to the local subscriber part, then re-apply the country code.
	local := strings.TrimPrefix(s, countryCode)
	local = strings.TrimLeft(local, "0")
	if len(local) != 9 || local[0] != '5' {
		return "", ErrInvalidPhoneNumber
	}
	return countryCode + local, nil
}

// LocalPhone converts a canonical number back to the bare subscriber form some
// SMS providers expect (country code and leading zeros stripped).
func LocalPhone(canonical string) string {
	local := strings.TrimPrefix(canonical, countryCode)
	return strings.TrimLeft(local, "0")
}

// MaskPhone masks a phone number for logging, keeping two characters at each
// end.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
