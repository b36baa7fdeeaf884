package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	username, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	// Keep the first character of the local part
	if len(username) > 1 {
		username = username[:1] + strings.Repeat("*", len(username)-1)
	}

	// Keep only the TLD of the domain
	labels := strings.Split(domain, ".")
	if len(labels) > 1 {
		for i := 0; i < len(labels)-1; i++ {
			labels[i] = strings.Repeat("*", len(labels[i]))
		}
		domain = strings.Join(labels, ".")
	}

	return username + "@" + domain
}

// sensitiveQueryFragments are substrings of parameter names that may carry
// credentials or subjects
var sensitiveQueryFragments = []string{
	"password",
	"token",
	"secret",
	"email",
	"auth",
	"key",
}

// SanitizeQueryString reports whether the query string mentions a sensitive
// parameter and should be redacted as a whole
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, fragment := range sensitiveQueryFragments {
		if strings.Contains(query, fragment) {
			return true
		}
	}
	return false
}
