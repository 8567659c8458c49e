package domain

import "strings"

// NormalizeMAC converts a hardware identifier to the canonical
// colon-delimited uppercase form ("aa-bb-cc-dd-ee-ff" -> "AA:BB:CC:DD:EE:FF").
// Inputs that are not 12 hex digits after stripping separators are returned
// trimmed and uppercased so lookups stay deterministic for odd firmware.
func NormalizeMAC(s string) string {
	var hex strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			hex.WriteRune(r)
		case r >= 'a' && r <= 'f':
			hex.WriteRune(r - ('a' - 'A'))
		case r == ':' || r == '-' || r == '.' || r == ' ':
			// separator, skip
		default:
			return strings.ToUpper(strings.TrimSpace(s))
		}
	}
	digits := hex.String()
	if len(digits) != 12 {
		return strings.ToUpper(strings.TrimSpace(s))
	}

	var out strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			out.WriteByte(':')
		}
		out.WriteString(digits[i : i+2])
	}
	return out.String()
}
