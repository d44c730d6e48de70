// Package login coordinates the Reddit OAuth2 authorization-code flow: the
// redirect to Reddit, the callback, and the handoff to the user manager.
package login

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	ternary "github.com/julien040/go-ternary"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Suhaibinator/redditauth/pkg/auth"
	"github.com/Suhaibinator/redditauth/pkg/metrics"
	"github.com/Suhaibinator/redditauth/pkg/session"
	"github.com/Suhaibinator/redditauth/pkg/settings"
	"github.com/Suhaibinator/redditauth/pkg/users"
)

// errorAccessDenied is the callback error Reddit sends when the user declines.
const errorAccessDenied = "access_denied"

// ProviderFactory builds a provider client for the given OAuth configuration.
type ProviderFactory func(cfg *auth.OAuthConfig) (auth.Provider, error)

// UserManager is the part of the user manager the flow depends on.
type UserManager interface {
	UserExists(ctx context.Context, externalID string) (bool, error)
}

// Collaborators are the explicit dependencies of a Coordinator.
type Collaborators struct {
	Settings    settings.Store
	Providers   ProviderFactory
	Users       UserManager
	Metrics     *metrics.Metrics // optional
	RedirectURL string
	// Timeout bounds the provider calls made by one callback. Zero disables it.
	Timeout time.Duration
}

// AuthorizationRequest is a fresh Reddit authorization redirect.
type AuthorizationRequest struct {
	URL   string
	State string
}

// CallbackResult is the outcome of a successful callback.
type CallbackResult struct {
	User        auth.User
	Token       *oauth2.Token
	ExtraData   []json.RawMessage // One entry per configured API call; null for failures.
	Destination string            // Safe local path saved at redirect time, or "".
}

// Identity converts the result into the user manager's input.
func (r *CallbackResult) Identity() (users.Identity, error) {
	extra := json.RawMessage("[]")
	if len(r.ExtraData) > 0 {
		b, err := json.Marshal(r.ExtraData)
		if err != nil {
			return users.Identity{}, fmt.Errorf("encoding extra data: %w", err)
		}
		extra = b
	}
	var accessToken string
	if r.Token != nil {
		accessToken = r.Token.AccessToken
	}
	return users.Identity{
		DisplayName: r.User.Username,
		ExternalID:  r.User.ID,
		AccessToken: accessToken,
		AvatarURL:   r.User.AvatarUrl,
		ExtraData:   extra,
	}, nil
}

// Coordinator runs the login flow.
type Coordinator struct {
	collab      Collaborators
	logger      *zap.Logger
	logEnricher func(ctx context.Context, logger *zap.Logger) *zap.Logger
}

// NewCoordinator returns a Coordinator. Settings, Providers and Users are required.
func NewCoordinator(
	logger *zap.Logger,
	logEnricher func(ctx context.Context, logger *zap.Logger) *zap.Logger,
	collab Collaborators,
) (*Coordinator, error) {
	if collab.Settings == nil || collab.Providers == nil || collab.Users == nil {
		return nil, errors.New("login: settings, providers and users are required")
	}
	if logEnricher == nil {
		logEnricher = func(_ context.Context, l *zap.Logger) *zap.Logger { return l }
	}
	return &Coordinator{
		collab:      collab,
		logger:      logger.Named("login"),
		logEnricher: logEnricher,
	}, nil
}

// provider loads the current settings and builds a client from them.
func (c *Coordinator) provider(ctx context.Context) (auth.Provider, settings.Settings, error) {
	s, err := c.collab.Settings.Load(ctx)
	if err != nil {
		return nil, s, fmt.Errorf("%w: loading settings: %w", ErrConfiguration, err)
	}
	if err := s.Validate(); err != nil {
		return nil, s, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	p, err := c.collab.Providers(&auth.OAuthConfig{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RedirectURL:  c.collab.RedirectURL,
		Scopes:       auth.FullScopes(s.Scopes),
		UserAgent:    s.UserAgent,
	})
	if err != nil {
		return nil, s, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return p, s, nil
}

// InitiateLogin starts a login attempt for sess and returns the Reddit
// authorization URL to redirect to. A safe local destination is remembered
// for after the callback.
func (c *Coordinator) InitiateLogin(ctx context.Context, sess *session.Session, destination string) (req *AuthorizationRequest, err error) {
	logger := c.logEnricher(ctx, c.logger)
	defer func() {
		c.collab.Metrics.IncrementOutcome(ternary.If(err == nil, metrics.OutcomeRedirected, outcomeFor(err)))
	}()

	p, _, err := c.provider(ctx)
	if err != nil {
		logger.Error("Reddit login is not configured", zap.Error(err))
		return nil, err
	}

	state, err := p.NewState()
	if err != nil {
		logger.Error("Failed to generate OAuth2 state", zap.Error(err))
		return nil, fmt.Errorf("%w: generating state: %w", ErrConfiguration, err)
	}

	err = sess.Set(ctx, session.KeyState, state)
	if SafeDestination(destination) {
		err = multierr.Append(err, sess.Set(ctx, session.KeyDestination, destination))
	} else {
		err = multierr.Append(err, sess.Delete(ctx, session.KeyDestination))
	}
	if err != nil {
		logger.Error("Failed to store pending login", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	return &AuthorizationRequest{URL: p.AuthURL(ctx, state), State: state}, nil
}

// HandleCallback completes a login attempt from the callback query. The
// pending state and destination are consumed on every path, and the access
// token is removed from the session before returning.
func (c *Coordinator) HandleCallback(ctx context.Context, sess *session.Session, query url.Values) (res *CallbackResult, err error) {
	logger := c.logEnricher(ctx, c.logger)
	defer func() {
		c.collab.Metrics.IncrementOutcome(outcomeFor(err))
	}()

	storedState, stateErr := sess.Take(ctx, session.KeyState)
	destination, destErr := sess.Take(ctx, session.KeyDestination)
	defer func() {
		if err := sess.Delete(context.WithoutCancel(ctx), session.KeyAccessToken); err != nil {
			logger.Warn("Failed to clear access token from session", zap.Error(err))
		}
	}()
	if query.Get("error") == errorAccessDenied {
		logger.Info("User declined Reddit authorization")
		return nil, ErrUserCancelled
	}
	if err := multierr.Combine(stateErr, destErr); err != nil {
		logger.Error("Failed to read pending login", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	p, s, err := c.provider(ctx)
	if err != nil {
		logger.Error("Reddit login is not configured", zap.Error(err))
		return nil, err
	}

	receivedState := query.Get("state")
	if storedState == "" || receivedState == "" ||
		subtle.ConstantTimeCompare([]byte(storedState), []byte(receivedState)) != 1 {
		logger.Warn("Invalid OAuth2 state on Reddit callback",
			zap.Bool("stored_state_present", storedState != ""),
			zap.Bool("received_state_present", receivedState != ""))
		return nil, ErrStateMismatch
	}

	if reason := query.Get("error"); reason != "" {
		logger.Error("Reddit returned an authorization error", zap.String("error", reason))
		return nil, fmt.Errorf("%w: reddit returned error %q", ErrProfileFetch, reason)
	}
	code := query.Get("code")
	if code == "" {
		logger.Error("Reddit callback is missing the authorization code")
		return nil, fmt.Errorf("%w: missing authorization code", ErrProfileFetch)
	}

	if c.collab.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.collab.Timeout)
		defer cancel()
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		logger.Error("Failed to exchange authorization code", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}
	if err := sess.Set(ctx, session.KeyAccessToken, token.AccessToken); err != nil {
		logger.Error("Failed to store access token", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}

	user, err := p.FetchUser(ctx, token)
	if err != nil {
		logger.Error("Failed to fetch Reddit profile", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}
	if user == nil || user.ID == "" {
		logger.Error("Reddit profile has no id")
		return nil, fmt.Errorf("%w: empty profile id", ErrProfileFetch)
	}
	logger = logger.With(zap.String("reddit_id", user.ID))

	extra := []json.RawMessage{}
	exists, err := c.collab.Users.UserExists(ctx, user.ID)
	switch {
	case err != nil:
		logger.Warn("Could not check for existing user, skipping extra API calls", zap.Error(err))
	case !exists:
		extra = c.fetchExtraData(ctx, logger, p, token, s.APICalls)
	}

	logger.Info("Reddit login succeeded", zap.String("username", user.Username))
	return &CallbackResult{
		User:        *user,
		Token:       token,
		ExtraData:   extra,
		Destination: destination,
	}, nil
}

// fetchExtraData calls each configured endpoint in order. Failed calls and
// non-JSON bodies yield a null entry.
func (c *Coordinator) fetchExtraData(ctx context.Context, logger *zap.Logger, p auth.Provider, token *oauth2.Token, calls []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(calls))
	for _, call := range calls {
		body, err := p.Get(ctx, token, call)
		if err == nil && !json.Valid(body) {
			err = errors.New("response is not valid JSON")
		}
		if err != nil {
			logger.Warn("Extra API call failed", zap.String("url", call), zap.Error(err))
			c.collab.Metrics.IncrementExtraCallFailures()
			out = append(out, json.RawMessage("null"))
			continue
		}
		out = append(out, json.RawMessage(body))
	}
	return out
}
