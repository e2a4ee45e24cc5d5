package caller

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"orpheus/pkg/errors"
)

// NormalizePhone canonicalizes a dialable number: formatting noise is
// stripped and a leading plus added, so "+1 (415) 555-0101" and
// "14155550101" produce the same hash and ciphertext.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, dropped
		default:
			return "", errors.Wrapf(errors.ErrInvalidInput, "unexpected character %q in phone number", r)
		}
	}

	// E.164 bounds
	if n := digits.Len(); n < 7 || n > 15 {
		return "", errors.Wrap(errors.ErrInvalidInput, "phone number must have 7 to 15 digits")
	}

	return "+" + digits.String(), nil
}

// HashPhone returns the lookup key for a normalized number: SHA-256
// hex. Callers are expected to pass NormalizePhone output so equal
// numbers always land on the same key.
func HashPhone(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
