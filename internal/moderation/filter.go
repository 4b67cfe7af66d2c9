package moderation

import "regexp"

// Patterns for off-platform contact exchange: email addresses, long digit
// runs (phone heuristic, deliberately coarse), and http(s) links.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`[0-9]{10,}`)
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
)

// ContainsPersonalInfo reports whether text carries an email address, a run
// of 10 or more consecutive digits, or an http(s) URL. A match rejects the
// whole message; there is no partial redaction.
func ContainsPersonalInfo(text string) bool {
	return emailPattern.MatchString(text) ||
		phonePattern.MatchString(text) ||
		urlPattern.MatchString(text)
}
