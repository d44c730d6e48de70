package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// User represents the normalized profile obtained after a successful Reddit login.
type User struct {
	ID        string `json:"id"`         // Stable Reddit account id, used as the external identity key.
	Username  string `json:"username"`   // Reddit username.
	AvatarUrl string `json:"avatar_url"` // URL to the user's profile picture (if available)
}

// OAuthConfig holds the configuration for the Reddit OAuth client.
// ClientID, ClientSecret and UserAgent are mandatory; Reddit rejects API
// traffic without a descriptive user agent.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scopes is the full scope list sent to Reddit. Use FullScopes to add the baseline.
	Scopes []string
	// UserAgent is sent with every request, e.g. "web:myapp:1.0 (by /u/someone)".
	UserAgent string
	// Duration is "temporary" (default) or "permanent" (issues a refresh token).
	Duration string
	// HTTPTimeout bounds every call to Reddit. Defaults to 10 seconds.
	HTTPTimeout time.Duration
	// Transport is the base round tripper. Share one across handlers to reuse
	// connections; NewTransport builds one with optional proxy support.
	Transport http.RoundTripper

	// Endpoint overrides, mostly useful for tests.
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// Predefined errors related to the OAuth process.
var (
	// ErrMissingConfig indicates that a mandatory OAuth setting is empty.
	ErrMissingConfig = errors.New("reddit oauth client id, secret and user agent are required")
	// ErrFailedToGetUserInfo indicates an error occurred while fetching user details from the provider.
	ErrFailedToGetUserInfo = errors.New("failed to get user info")
	// ErrFailedToExchangeCode indicates an error occurred during the token exchange process.
	ErrFailedToExchangeCode = errors.New("failed to exchange code for token")
	// ErrInvalidToken indicates the provider returned a token that is not usable.
	ErrInvalidToken = errors.New("received invalid token from provider")
	// ErrRequestFailed indicates an authenticated API request returned a non-2xx status.
	ErrRequestFailed = errors.New("reddit api request failed")
)

const defaultHTTPTimeout = 10 * time.Second

// OAuthHandler implements Provider for Reddit.
type OAuthHandler struct {
	redditOAuthConfig *oauth2.Config                                            // Configuration for Reddit OAuth.
	httpClient        *http.Client                                              // Client carrying the user agent, proxy and timeout.
	apiBaseURL        *url.URL                                                  // Base for authenticated API calls.
	logger            *zap.Logger                                               // Shared logger instance.
	logEnricher       func(ctx context.Context, logger *zap.Logger) *zap.Logger // Function to enrich logs with request fields.

	config OAuthConfig // Stores the initial configuration.
}

// NewOAuthHandler creates and initializes a Reddit OAuthHandler.
// It returns ErrMissingConfig if the client id, secret or user agent is empty.
func NewOAuthHandler(
	logger *zap.Logger,
	logEnricher func(ctx context.Context, logger *zap.Logger) *zap.Logger,
	config *OAuthConfig,
) (*OAuthHandler, error) {
	if config == nil {
		logger.Error("OAuth config is nil")
		return nil, ErrMissingConfig
	}
	if logEnricher == nil {
		logEnricher = func(_ context.Context, l *zap.Logger) *zap.Logger { return l }
	}

	handler := &OAuthHandler{
		logger:      logger.Named("oauth"),
		config:      *config,
		logEnricher: logEnricher,
	}
	if err := handler.registerRedditOAuth(context.Background()); err != nil {
		return nil, err
	}
	return handler, nil
}

// NewTransport returns a base transport for provider traffic, routed through
// proxyURL when it is not empty.
func NewTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return transport, nil
}

// buildHTTPClient assembles the client used for token exchange and API calls.
func buildHTTPClient(config OAuthConfig) *http.Client {
	base := config.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	timeout := config.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: base, userAgent: config.UserAgent},
	}
}

// withHTTPClient makes golang.org/x/oauth2 use the handler's client for its own requests.
func (h *OAuthHandler) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
}

// authorizedClient returns an http.Client that attaches the access token to each request.
func (h *OAuthHandler) authorizedClient(ctx context.Context, token *oauth2.Token) *http.Client {
	client := h.redditOAuthConfig.Client(h.withHTTPClient(ctx), token)
	client.Timeout = h.httpClient.Timeout
	return client
}
