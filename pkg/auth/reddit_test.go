package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const testUserAgent = "web:redditauth-test:1.0 (by /u/tester)"

// fakeReddit serves the token, profile and one extra endpoint, recording what it saw.
type fakeReddit struct {
	server      *httptest.Server
	userAgents  []string
	basicUser   string
	basicPass   string
	gotCode     string
	bearerToken string
}

func newFakeReddit(t *testing.T) *fakeReddit {
	t.Helper()
	f := &fakeReddit{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.userAgents = append(f.userAgents, r.UserAgent())
		f.basicUser, f.basicPass, _ = r.BasicAuth()
		_ = r.ParseForm()
		f.gotCode = r.PostForm.Get("code")
		if f.gotCode != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600,"scope":"identity read"}`))
	})
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		f.userAgents = append(f.userAgents, r.UserAgent())
		f.bearerToken = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "abc",
			"name":     "alice",
			"icon_img": "https://styles.redditmedia.com/a.png?width=256&amp;s=xyz",
		})
	})
	mux.HandleFunc("/api/v1/me/karma", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"kind":"KarmaList","data":[]}`))
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestHandler(t *testing.T, f *fakeReddit, scopes []string) *OAuthHandler {
	t.Helper()
	h, err := NewOAuthHandler(zap.NewNop(), nil, &OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://example.com/user/login/reddit/callback",
		Scopes:       scopes,
		UserAgent:    testUserAgent,
		AuthURL:      f.server.URL + "/api/v1/authorize",
		TokenURL:     f.server.URL + "/api/v1/access_token",
		APIBaseURL:   f.server.URL,
	})
	require.NoError(t, err)
	return h
}

func TestNewOAuthHandler_MissingConfig(t *testing.T) {
	cases := map[string]OAuthConfig{
		"missing client id":     {ClientSecret: "s", UserAgent: testUserAgent},
		"missing client secret": {ClientID: "c", UserAgent: testUserAgent},
		"missing user agent":    {ClientID: "c", ClientSecret: "s"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			h, err := NewOAuthHandler(zap.NewNop(), nil, &cfg)
			require.ErrorIs(t, err, ErrMissingConfig)
			assert.Nil(t, h)
		})
	}

	t.Run("nil config", func(t *testing.T) {
		_, err := NewOAuthHandler(zap.NewNop(), nil, nil)
		require.ErrorIs(t, err, ErrMissingConfig)
	})
}

func TestAuthURL(t *testing.T) {
	f := newFakeReddit(t)
	h := newTestHandler(t, f, FullScopes([]string{"vote", "flair"}))

	raw := h.AuthURL(context.Background(), "state-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/api/v1/authorize", u.Path)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "temporary", q.Get("duration"))
	assert.Equal(t, "https://example.com/user/login/reddit/callback", q.Get("redirect_uri"))
	assert.Equal(t, []string{"identity", "read", "vote", "flair"}, strings.Fields(q.Get("scope")))
}

func TestExchangeAndFetchUser(t *testing.T) {
	f := newFakeReddit(t)
	h := newTestHandler(t, f, nil)
	ctx := context.Background()

	token, err := h.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token.AccessToken)
	assert.False(t, token.Expiry.IsZero())
	assert.Equal(t, "client-id", f.basicUser)
	assert.Equal(t, "client-secret", f.basicPass)
	assert.Equal(t, "good-code", f.gotCode)

	user, err := h.FetchUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, &User{
		ID:        "abc",
		Username:  "alice",
		AvatarUrl: "https://styles.redditmedia.com/a.png?width=256&s=xyz",
	}, user)
	assert.Equal(t, "tok-123", f.bearerToken)

	for _, ua := range f.userAgents {
		assert.Equal(t, testUserAgent, ua)
	}
}

func TestExchange_Rejected(t *testing.T) {
	f := newFakeReddit(t)
	h := newTestHandler(t, f, nil)

	token, err := h.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, ErrFailedToExchangeCode)
	assert.Nil(t, token)
}

func TestGet(t *testing.T) {
	f := newFakeReddit(t)
	h := newTestHandler(t, f, nil)
	token := &oauth2.Token{AccessToken: "tok-123", TokenType: "bearer"}

	t.Run("relative path resolves against the api base", func(t *testing.T) {
		body, err := h.Get(context.Background(), token, "/api/v1/me/karma")
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"KarmaList","data":[]}`, string(body))
	})

	t.Run("absolute url is used as is", func(t *testing.T) {
		body, err := h.Get(context.Background(), token, f.server.URL+"/api/v1/me/karma")
		require.NoError(t, err)
		assert.NotEmpty(t, body)
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		_, err := h.Get(context.Background(), token, "/forbidden")
		require.ErrorIs(t, err, ErrRequestFailed)
	})
}

func TestRedditAvatarURL(t *testing.T) {
	assert.Equal(t, "http://x/y.png", redditAvatarURL(&RedditUserInfo{IconImg: "http://x/y.png"}))
	assert.Equal(t, "http://x/snoo.png", redditAvatarURL(&RedditUserInfo{SnoovatarImg: "http://x/snoo.png"}))
	assert.Empty(t, redditAvatarURL(&RedditUserInfo{}))
}

func TestGenerateState(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		state, err := GenerateState()
		require.NoError(t, err)
		assert.Len(t, state, 43)
		_, dup := seen[state]
		require.False(t, dup, "state reused")
		seen[state] = struct{}{}
	}
}

func TestNewTransport(t *testing.T) {
	direct, err := NewTransport("")
	require.NoError(t, err)
	assert.NotSame(t, http.DefaultTransport, direct)

	proxied, err := NewTransport("http://proxy.internal:3128")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, "https://oauth.reddit.com/api/v1/me", nil)
	require.NoError(t, err)
	proxyURL, err := proxied.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.internal:3128", proxyURL.Host)

	_, err = NewTransport("http://[::1")
	require.Error(t, err)
}
