package logger

import "strings"

// MaskEmail reduces an email address to a loggable form, keeping only the
// first character of the local part and the TLD. "alice@example.com"
// becomes "a****@*******.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	local := email[:at]
	domain := email[at+1:]

	masked := local[:1]
	if len(local) > 1 {
		masked += strings.Repeat("*", len(local)-1)
	}

	if dot := strings.LastIndex(domain, "."); dot > 0 {
		domain = strings.Repeat("*", dot) + domain[dot:]
	} else {
		domain = strings.Repeat("*", len(domain))
	}

	return masked + "@" + domain
}

// queryParamDenylist covers the credential and code material this service
// handles. A query string mentioning any of these is dropped from request
// logs wholesale rather than partially scrubbed.
var queryParamDenylist = []string{
	"password",
	"token",
	"secret",
	"code",
	"email",
	"totp",
	"auth",
}

// SanitizeQueryString reports whether a raw query string should be
// omitted from logs because it may carry credentials or recovery codes.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	query := strings.ToLower(rawQuery)
	for _, param := range queryParamDenylist {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
