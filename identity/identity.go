// Package identity derives card identities from tag serial numbers.
package identity

import (
	// Go Internal Packages
	"strconv"
	"strings"

	// Local Packages
	models "nfc-bank/models"
)

// maxDigits keeps the identity within 7 bytes of the serial number.
const maxDigits = 14

// Derive maps a serial number such as "04:a2:3b:c1:5d:80:90" to a card identity.
// Separators are dropped, the hex string is cut to 14 digits and the longest
// valid hex prefix is parsed. It never fails: garbage yields 0.
func Derive(serial string) models.CardIdentity {
	var b strings.Builder
	for _, r := range serial {
		if isSeparator(r) {
			continue
		}
		if b.Len() == maxDigits {
			break
		}
		b.WriteRune(r)
	}

	digits := b.String()
	end := 0
	for end < len(digits) && isHex(digits[end]) {
		end++
	}
	if end == 0 {
		return 0
	}

	id, err := strconv.ParseUint(digits[:end], 16, 64)
	if err != nil {
		return 0
	}
	return models.CardIdentity(id)
}

// FormatCardNumber renders an identity the way it is printed on the card:
// 16 zero padded decimal digits in groups of four.
func FormatCardNumber(id models.CardIdentity) string {
	s := strconv.FormatUint(uint64(id), 10)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}

	var b strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := min(i+4, len(s))
		b.WriteString(s[i:end])
	}
	return b.String()
}

// Parse accepts either a decimal card number (spaces allowed) or a
// colon separated serial number.
func Parse(s string) (models.CardIdentity, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, ":-") {
		return Derive(s), true
	}
	id, err := strconv.ParseUint(strings.ReplaceAll(s, " ", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return models.CardIdentity(id), true
}

func isSeparator(r rune) bool {
	switch r {
	case ':', '-', ' ', '\t', '\n':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
