package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ===== Reddit OAuth =====

// Default Reddit endpoints.
// See: https://github.com/reddit-archive/reddit/wiki/OAuth2
const (
	RedditAuthURL    = "https://www.reddit.com/api/v1/authorize"
	RedditTokenURL   = "https://www.reddit.com/api/v1/access_token"
	RedditAPIBaseURL = "https://oauth.reddit.com"
)

// maxBodySize caps how much of an API response is read into memory.
const maxBodySize = 1 << 20

// RedditUserInfo represents the user information returned by the Reddit API endpoint `/api/v1/me`.
type RedditUserInfo struct {
	ID               string  `json:"id"`                 // The user's unique Reddit ID (without the t2_ prefix).
	Name             string  `json:"name"`               // The user's Reddit username.
	IconImg          string  `json:"icon_img"`           // Avatar URL, HTML-escaped by Reddit.
	SnoovatarImg     string  `json:"snoovatar_img"`      // Snoovatar URL, if the user built one.
	CreatedUTC       float64 `json:"created_utc"`        // Account creation time (unix seconds).
	LinkKarma        int     `json:"link_karma"`         // Post karma.
	CommentKarma     int     `json:"comment_karma"`      // Comment karma.
	Verified         bool    `json:"verified"`           // Whether the account is verified.
	HasVerifiedEmail bool    `json:"has_verified_email"` // Whether the account email is verified.
	Over18           bool    `json:"over_18"`            // Whether the user has opted into NSFW content.
}

// redditAvatarURL picks the best avatar for the profile. Reddit escapes `&` in
// icon_img query strings, so entities are decoded before use.
func redditAvatarURL(info *RedditUserInfo) string {
	if info.IconImg != "" {
		return html.UnescapeString(info.IconImg)
	}
	return html.UnescapeString(info.SnoovatarImg)
}

// fetchRedditUserInfo retrieves the authenticated user's profile information from `/api/v1/me`.
// It requires an authorized http.Client.
func fetchRedditUserInfo(ctx context.Context, client *http.Client, meURL string) (*RedditUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return nil, fmt.Errorf("failed to get user info: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var userInfo RedditUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info response: %w", err)
	}
	return &userInfo, nil
}

// AuthURL generates the URL to redirect the user to for Reddit authentication.
// It includes the client ID, redirect URL, requested scopes, duration and state.
func (h *OAuthHandler) AuthURL(ctx context.Context, state string) string {
	logger := h.logEnricher(ctx, h.logger).Named("reddit_auth_url")
	logger.Debug("Building Reddit authorization URL", zap.Strings("scopes", h.redditOAuthConfig.Scopes))
	return h.redditOAuthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", h.config.Duration))
}

// NewState returns a fresh state value for the authorization request.
func (h *OAuthHandler) NewState() (string, error) {
	return GenerateState()
}

// Exchange trades the authorization code for an access token.
// Returns ErrFailedToExchangeCode or ErrInvalidToken on failure.
func (h *OAuthHandler) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	logger := h.logEnricher(ctx, h.logger).Named("reddit_exchange")

	token, err := h.redditOAuthConfig.Exchange(h.withHTTPClient(ctx), code)
	if err != nil {
		logger.Error("Failed to exchange code for token", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFailedToExchangeCode, err)
	}

	if !token.Valid() {
		logger.Error("Received invalid token")
		return nil, ErrInvalidToken
	}
	return token, nil
}

// FetchUser loads the Reddit profile for the token and maps it to the standardized User struct.
// Returns ErrFailedToGetUserInfo on failure.
func (h *OAuthHandler) FetchUser(ctx context.Context, token *oauth2.Token) (*User, error) {
	logger := h.logEnricher(ctx, h.logger).Named("reddit_login")

	redditUser, err := fetchRedditUserInfo(ctx, h.authorizedClient(ctx, token), h.resolve("/api/v1/me"))
	if err != nil {
		logger.Error("Failed to get Reddit user info", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFailedToGetUserInfo, err)
	}

	user := &User{
		ID:        redditUser.ID,
		Username:  redditUser.Name,
		AvatarUrl: redditAvatarURL(redditUser),
	}

	logger.Info("Reddit profile loaded", zap.String("reddit_id", user.ID), zap.String("reddit_username", user.Username))
	return user, nil
}

// Get performs an authenticated GET request against the Reddit API.
// Relative paths are resolved against the API base URL. Non-2xx responses
// return ErrRequestFailed.
func (h *OAuthHandler) Get(ctx context.Context, token *oauth2.Token, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.resolve(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create api request: %w", err)
	}

	resp, err := h.authorizedClient(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read api response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrRequestFailed, req.URL.Redacted(), resp.StatusCode)
	}
	return body, nil
}

// resolve turns an API path into an absolute URL. Absolute URLs pass through unchanged.
func (h *OAuthHandler) resolve(rawURL string) string {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || ref.IsAbs() {
		return rawURL
	}
	return h.apiBaseURL.ResolveReference(ref).String()
}

// registerRedditOAuth creates and stores the oauth2.Config for Reddit,
// using the credentials provided in the OAuthConfig.
// Reddit expects the client credentials as an HTTP Basic header on the token endpoint.
func (h *OAuthHandler) registerRedditOAuth(ctx context.Context) error {
	logger := h.logEnricher(ctx, h.logger).Named("register_reddit")
	if h.config.ClientID == "" || h.config.ClientSecret == "" || h.config.UserAgent == "" {
		logger.Error("Reddit OAuth client ID, secret or user agent missing during registration")
		return ErrMissingConfig
	}

	if h.config.AuthURL == "" {
		h.config.AuthURL = RedditAuthURL
	}
	if h.config.TokenURL == "" {
		h.config.TokenURL = RedditTokenURL
	}
	if h.config.APIBaseURL == "" {
		h.config.APIBaseURL = RedditAPIBaseURL
	}
	if h.config.Duration == "" {
		h.config.Duration = "temporary"
	}
	if len(h.config.Scopes) == 0 {
		h.config.Scopes = FullScopes(nil)
	}

	apiBase, err := url.Parse(h.config.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid reddit api base url: %w", err)
	}
	h.apiBaseURL = apiBase
	h.httpClient = buildHTTPClient(h.config)

	h.redditOAuthConfig = &oauth2.Config{
		ClientID:     h.config.ClientID,
		ClientSecret: h.config.ClientSecret,
		RedirectURL:  h.config.RedirectURL,
		Scopes:       h.config.Scopes,
		Endpoint: oauth2.Endpoint{ // Manually define Reddit endpoints
			AuthURL:   h.config.AuthURL,
			TokenURL:  h.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	logger.Debug("Reddit OAuth handler registered", zap.Strings("scopes", h.config.Scopes))
	return nil
}
