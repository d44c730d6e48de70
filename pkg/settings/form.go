package settings

import (
	"fmt"
	"net/url"
	"strings"

	ternary "github.com/julien040/go-ternary"
	"go.uber.org/multierr"

	"github.com/Suhaibinator/redditauth/pkg/auth"
)

// Form carries the raw values of the settings form, as submitted by an operator.
type Form struct {
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	Scopes          string `json:"scopes"`    // Space- or newline-separated.
	APICalls        string `json:"api_calls"` // One URL per line.
	UserAgentString string `json:"user_agent_string"`
}

// FieldError is a validation failure attached to one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors extracts the individual field errors from a Validate result.
func FieldErrors(err error) []*FieldError {
	var out []*FieldError
	for _, e := range multierr.Errors(err) {
		if fe, ok := e.(*FieldError); ok {
			out = append(out, fe)
		}
	}
	return out
}

// Validate checks the form and returns all field errors combined.
func (f Form) Validate() error {
	var err error
	if strings.TrimSpace(f.ClientID) == "" {
		err = multierr.Append(err, &FieldError{Field: "client_id", Message: "Client ID field is required."})
	}
	if strings.TrimSpace(f.ClientSecret) == "" {
		err = multierr.Append(err, &FieldError{Field: "client_secret", Message: "Client Secret field is required."})
	}
	if strings.TrimSpace(f.UserAgentString) == "" {
		err = multierr.Append(err, &FieldError{Field: "user_agent_string", Message: "User Agent String field is required."})
	}
	if auth.ValidateScopes(auth.ParseScopes(f.Scopes)) != nil {
		err = multierr.Append(err, &FieldError{Field: "scopes", Message: "You have entered an invalid scope. Please check and try again."})
	}
	for _, call := range splitLines(f.APICalls) {
		if !validAPICall(call) {
			err = multierr.Append(err, &FieldError{
				Field:   "api_calls",
				Message: fmt.Sprintf("%q is not a valid API call. Use an absolute http(s) URL or a path starting with /.", call),
			})
		}
	}
	return err
}

// Settings converts the form into Settings. Client credentials are trimmed.
func (f Form) Settings() Settings {
	return Settings{
		ClientID:     strings.TrimSpace(f.ClientID),
		ClientSecret: strings.TrimSpace(f.ClientSecret),
		Scopes:       auth.ParseScopes(f.Scopes),
		APICalls:     splitLines(f.APICalls),
		UserAgent:    strings.TrimSpace(f.UserAgentString),
	}
}

// FormFromSettings renders Settings back into form values. The secret is
// masked unless revealSecret is set.
func FormFromSettings(s Settings, revealSecret bool) Form {
	return Form{
		ClientID:        s.ClientID,
		ClientSecret:    ternary.If(revealSecret || s.ClientSecret == "", s.ClientSecret, maskSecret(s.ClientSecret)),
		Scopes:          strings.Join(s.Scopes, " "),
		APICalls:        strings.Join(s.APICalls, "\n"),
		UserAgentString: s.UserAgent,
	}
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// splitLines returns the non-blank lines of raw, trimmed.
func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func validAPICall(call string) bool {
	u, err := url.Parse(call)
	if err != nil {
		return false
	}
	if u.IsAbs() {
		return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
	}
	return strings.HasPrefix(call, "/") && !strings.HasPrefix(call, "//")
}
