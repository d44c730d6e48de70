package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "redditauth_sid", cfg.CookieName)
	assert.Equal(t, "temporary", cfg.Reddit.Duration)
	assert.Equal(t, "http://localhost:8080/user/login/reddit/callback", cfg.RedirectURL())
	assert.True(t, cfg.BootstrapSettings().IsZero())
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"REDDIT_LOGIN_BASE_URL":             "https://example.com/",
		"REDDIT_LOGIN_PROVIDER_TIMEOUT":     "3s",
		"REDDIT_LOGIN_REDDIT_CLIENT_ID":     " abc ",
		"REDDIT_LOGIN_REDDIT_CLIENT_SECRET": "shh",
		"REDDIT_LOGIN_REDDIT_SCOPES":        "vote,flair",
		"REDDIT_LOGIN_REDDIT_API_CALLS":     "/api/v1/me/karma,/api/v1/me/prefs",
		"REDDIT_LOGIN_REDDIT_USER_AGENT":    "web:test:1.0",
		"REDDIT_LOGIN_REDDIT_DURATION":      "permanent",
	})
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "https://example.com/user/login/reddit/callback", cfg.RedirectURL())

	s := cfg.BootstrapSettings()
	assert.Equal(t, "abc", s.ClientID)
	assert.Equal(t, []string{"vote", "flair"}, s.Scopes)
	assert.Equal(t, []string{"/api/v1/me/karma", "/api/v1/me/prefs"}, s.APICalls)
	assert.NoError(t, s.Validate())
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"base url":      {"REDDIT_LOGIN_BASE_URL": "not a url"},
		"duration":      {"REDDIT_LOGIN_REDDIT_DURATION": "forever"},
		"timeout":       {"REDDIT_LOGIN_PROVIDER_TIMEOUT": "0s"},
		"bad timeout":   {"REDDIT_LOGIN_PROVIDER_TIMEOUT": "soon"},
		"cookie secure": {"REDDIT_LOGIN_COOKIE_SECURE": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(vars)
			require.Error(t, err)
		})
	}
}
