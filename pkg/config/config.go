// Package config loads the service configuration from REDDIT_LOGIN_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Suhaibinator/redditauth/pkg/settings"
)

// Prefix is prepended to every environment variable name.
const Prefix = "REDDIT_LOGIN_"

// CallbackPath is where Reddit redirects back after authorization.
const CallbackPath = "/user/login/reddit/callback"

// Config describes the service configuration.
type Config struct {
	Addr        string `env:"ADDR"         envDefault:":8080"`
	BaseURL     string `env:"BASE_URL"     envDefault:"http://localhost:8080"`
	Development bool   `env:"DEVELOPMENT"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	// Storage; empty values select the in-memory implementations.
	RedisURL   string `env:"REDIS_URL"`
	SQLitePath string `env:"SQLITE_PATH"`

	SessionTTL      time.Duration `env:"SESSION_TTL"      envDefault:"24h"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	CookieName      string        `env:"COOKIE_NAME"      envDefault:"redditauth_sid"`
	CookieSecure    bool          `env:"COOKIE_SECURE"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
	HTTPProxy       string        `env:"HTTP_PROXY"`

	Reddit RedditBootstrap `envPrefix:"REDDIT_"`
}

// RedditBootstrap seeds the settings store when it is empty.
type RedditBootstrap struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Scopes       []string `env:"SCOPES"     envSeparator:","`
	APICalls     []string `env:"API_CALLS"  envSeparator:","`
	UserAgent    string   `env:"USER_AGENT"`
	Duration     string   `env:"DURATION"   envDefault:"temporary"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %sBASE_URL %q", Prefix, c.BaseURL)
	}
	switch c.Reddit.Duration {
	case "temporary", "permanent":
	default:
		return fmt.Errorf("invalid %sREDDIT_DURATION %q: want temporary or permanent", Prefix, c.Reddit.Duration)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%sPROVIDER_TIMEOUT must be positive", Prefix)
	}
	return nil
}

// RedirectURL is the OAuth2 redirect URI registered with Reddit.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + CallbackPath
}

// BootstrapSettings converts the env bootstrap values into settings.
func (c *Config) BootstrapSettings() settings.Settings {
	return settings.Settings{
		ClientID:     strings.TrimSpace(c.Reddit.ClientID),
		ClientSecret: strings.TrimSpace(c.Reddit.ClientSecret),
		Scopes:       c.Reddit.Scopes,
		APICalls:     c.Reddit.APICalls,
		UserAgent:    c.Reddit.UserAgent,
	}
}
