package account

import "strings"

// NormalizeEmail trims surrounding space and lower-cases the domain part.
// The local part keeps its case; lookups compare case-insensitively anyway.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}
