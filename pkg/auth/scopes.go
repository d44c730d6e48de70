package auth

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultScopes are always requested: identity for /api/v1/me, read for the
// common listing endpoints.
var DefaultScopes = []string{"identity", "read"}

// AllowedScopes lists the scope names Reddit defines. The empty string is
// accepted so that a blank settings field means "no extra scopes".
var AllowedScopes = []string{
	"",
	"account",
	"creddits",
	"edit",
	"flair",
	"history",
	"identity",
	"livemanage",
	"modconfig",
	"modcontributors",
	"modflair",
	"modlog",
	"modmail",
	"modothers",
	"modposts",
	"modself",
	"modtraffic",
	"modwiki",
	"mysubreddits",
	"privatemessages",
	"read",
	"report",
	"save",
	"structuredstyles",
	"submit",
	"subscribe",
	"vote",
	"wiki",
	"wikiread",
}

// ParseScopes splits a space- or newline-separated scope list.
func ParseScopes(raw string) []string {
	return strings.Fields(raw)
}

// ValidateScopes returns an error naming the first scope outside AllowedScopes.
func ValidateScopes(scopes []string) error {
	for _, scope := range scopes {
		if !slices.Contains(AllowedScopes, scope) {
			return fmt.Errorf("invalid scope %q", scope)
		}
	}
	return nil
}

// FullScopes returns DefaultScopes followed by extra in order. Duplicates are
// kept; Reddit tolerates repeated scope tokens.
func FullScopes(extra []string) []string {
	scopes := make([]string, 0, len(DefaultScopes)+len(extra))
	scopes = append(scopes, DefaultScopes...)
	for _, scope := range extra {
		if scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
