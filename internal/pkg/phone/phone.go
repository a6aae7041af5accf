package phone

import "strings"

// Digits strips everything but digits from a raw phone value.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// E164 normalizes a raw phone value to +<digits>. Returns "" when the
// input carries no digits at all.
func E164(raw string) string {
	d := Digits(raw)
	if d == "" {
		return ""
	}
	return "+" + d
}
