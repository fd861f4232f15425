package util

import (
	"regexp"
	"strings"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// NormalizePhone reduces a sender id such as "whatsapp:+234 801-234" to its digits.
func NormalizePhone(raw string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "whatsapp:")
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// E164 formats a normalized phone for outbound APIs.
func E164(phone string) string {
	digits := NormalizePhone(phone)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// Truncate shortens s to at most max runes, marking the cut with "…".
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
