package auth

//go:generate mockgen -source=provider.go -destination=mocks/provider.go -package=mocks

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider defines the contract the login flow consumes from an OAuth provider client.
type Provider interface {
	// AuthURL generates the provider-specific authorization URL for the given state.
	AuthURL(ctx context.Context, state string) string
	// NewState returns a fresh, unguessable state value for one login attempt.
	NewState() (string, error)
	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// FetchUser retrieves the resource owner's profile using the access token.
	FetchUser(ctx context.Context, token *oauth2.Token) (*User, error)
	// Get performs an authenticated GET request and returns the response body.
	Get(ctx context.Context, token *oauth2.Token, url string) ([]byte, error)
}
