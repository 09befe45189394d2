// Package phone normalizes customer phone numbers to their local form.
package phone

import "strings"

// Normalize strips formatting from a raw phone string and removes the
// country prefix. The second return value reports whether the input
// looks like a phone number at all.
//
// Accepted forms (digits after stripping separators):
//
//	375 XX XXXXXXX (12 digits) → XX XXXXXXX
//	80 XX XXXXXXX  (11 digits) → XX XXXXXXX
//	7 XXX XXXXXXX  (11 digits) → XXX XXXXXXX
//	8 XXX XXXXXXX  (11 digits) → XXX XXXXXXX
//	9 or 10 bare digits        → unchanged
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(digits, "375") && len(digits) == 12:
		return digits[3:], true
	case strings.HasPrefix(digits, "80") && len(digits) == 11:
		return digits[2:], true
	case strings.HasPrefix(digits, "7") && len(digits) == 11:
		return digits[1:], true
	case strings.HasPrefix(digits, "8") && len(digits) == 11:
		return digits[1:], true
	case len(digits) == 9 || len(digits) == 10:
		return digits, true
	}
	return "", false
}
