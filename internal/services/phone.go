package services

import (
	"os"
	"strings"
)

// defaultCountryCode returns the dialing prefix prepended to bare local
// numbers. Cameroon (237) unless configured otherwise.
func defaultCountryCode() string {
	if cc := os.Getenv("DEFAULT_COUNTRY_CODE"); cc != "" {
		return cc
	}
	return "237"
}

// NormalizePhone canonicalizes an arbitrary phone string to international
// format: a leading "+" followed by digits only. This is the join key between
// webhook sender ids and stored guardian phone numbers, so it must be
// idempotent: NormalizePhone(NormalizePhone(x)) == NormalizePhone(x).
//
// Rules, in order: strip everything that is not a digit; drop the local
// dialing zero; if what remains looks like a bare local number (8 or 9
// digits without the country code), prepend the default country code.
// Anything longer is assumed to already carry its country code.
func NormalizePhone(raw string) string {
	cc := defaultCountryCode()

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if digits[0] == '0' && !strings.HasPrefix(digits, cc) {
		digits = strings.TrimLeft(digits, "0")
		if digits == "" {
			return ""
		}
	}

	if !strings.HasPrefix(digits, cc) && (len(digits) == 8 || len(digits) == 9) {
		digits = cc + digits
	}

	return "+" + digits
}
