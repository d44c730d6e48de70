package login

import (
	"errors"

	"github.com/Suhaibinator/redditauth/pkg/metrics"
)

// Terminal outcomes of a login attempt. Returned errors wrap one of these.
var (
	ErrConfiguration      = errors.New("reddit login is not configured")
	ErrUserCancelled      = errors.New("user cancelled reddit login")
	ErrStateMismatch      = errors.New("invalid oauth2 state")
	ErrProfileFetch       = errors.New("could not load reddit profile")
	ErrSessionUnavailable = errors.New("session store unavailable")
)

// Flash messages shown to the user.
const (
	MessageConfiguration = "Social Auth Reddit not configured properly. Contact site administrator."
	MessageCancelled     = "You could not be authenticated."
	MessageState         = "Reddit login failed. Invalid OAuth2 state."
	MessageProfile       = "Reddit login failed, could not load Reddit profile. Contact site administrator."
	MessageRetry         = "Reddit login failed. Please try again later."
)

// UserMessage maps a login error to the message shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return MessageConfiguration
	case errors.Is(err, ErrUserCancelled):
		return MessageCancelled
	case errors.Is(err, ErrStateMismatch):
		return MessageState
	case errors.Is(err, ErrProfileFetch):
		return MessageProfile
	default:
		return MessageRetry
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrConfiguration):
		return metrics.OutcomeConfigurationError
	case errors.Is(err, ErrUserCancelled):
		return metrics.OutcomeUserCancelled
	case errors.Is(err, ErrStateMismatch):
		return metrics.OutcomeStateMismatch
	case errors.Is(err, ErrProfileFetch):
		return metrics.OutcomeProfileFetchError
	default:
		return metrics.OutcomeSessionError
	}
}
