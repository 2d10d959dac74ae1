package domain

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Email shape: local@domain.tld, no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Characters that would break or widen an ILIKE search pattern.
var searchStripPattern = regexp.MustCompile(`[,.()"'\\%_]`)

// MaxSearchLength caps free-text search input.
const MaxSearchLength = 200

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsValidWebsite accepts absolute http(s) URLs and bare host names.
func IsValidWebsite(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && strings.Contains(u.Host, ".")
}

// SanitizeSearch removes pattern metacharacters and truncates to
// MaxSearchLength runes.
func SanitizeSearch(s string) string {
	s = searchStripPattern.ReplaceAllString(strings.TrimSpace(s), "")
	if utf8.RuneCountInString(s) > MaxSearchLength {
		s = string([]rune(s)[:MaxSearchLength])
	}
	return strings.TrimSpace(s)
}

// DuplicateKey is the composite lookup key used to match imported rows
// against existing locations: lower(trim(name)) + "::" + trim(postal code).
func DuplicateKey(name, postalCode string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "::" + strings.TrimSpace(postalCode)
}
