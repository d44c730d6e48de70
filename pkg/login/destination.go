package login

import (
	"net/url"
	"strings"
)

// SafeDestination reports whether dest is a local path that is safe to
// redirect to after login.
func SafeDestination(dest string) bool {
	if !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		return false
	}
	if strings.ContainsAny(dest, "\\\r\n") {
		return false
	}
	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
