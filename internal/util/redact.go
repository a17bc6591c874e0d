package util

import "regexp"

var (
	reEmail    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reToken    = regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|password|passwd|pwd)([=:]\s*)([^\s&"',]{4,})`)
	reURLCreds = regexp.MustCompile(`(://[^/\s:@]+):[^@\s/]+@`)
)

// RedactPII masks emails, credential assignments and URL passwords in s.
func RedactPII(s string) string {
	s = reURLCreds.ReplaceAllString(s, "$1:[redacted]@")
	s = reEmail.ReplaceAllString(s, "[redacted-email]")
	s = reToken.ReplaceAllString(s, "$1$2[redacted]")
	return s
}
