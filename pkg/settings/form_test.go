package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() Form {
	return Form{
		ClientID:        " client ",
		ClientSecret:    "secret\n",
		Scopes:          "vote flair",
		APICalls:        "https://oauth.reddit.com/api/v1/me/karma\n\n/api/v1/me/prefs\n",
		UserAgentString: "web:drupal:1.0 (by /u/alice)",
	}
}

func TestFormValidate(t *testing.T) {
	t.Run("accepts a complete form", func(t *testing.T) {
		require.NoError(t, validForm().Validate())
	})

	t.Run("accepts empty scopes as no extra scopes", func(t *testing.T) {
		f := validForm()
		f.Scopes = ""
		require.NoError(t, f.Validate())
		assert.Empty(t, f.Settings().Scopes)
	})

	t.Run("rejects a scope outside the allow-list", func(t *testing.T) {
		f := validForm()
		f.Scopes = "vote superadmin"
		errs := FieldErrors(f.Validate())
		require.Len(t, errs, 1)
		assert.Equal(t, "scopes", errs[0].Field)
	})

	t.Run("reports every missing field", func(t *testing.T) {
		f := validForm()
		f.ClientID = "  "
		f.ClientSecret = ""
		f.APICalls = "ftp://example.com/x\nnot a url"
		f.UserAgentString = " "
		fields := map[string]int{}
		for _, fe := range FieldErrors(f.Validate()) {
			fields[fe.Field]++
		}
		assert.Equal(t, map[string]int{"client_id": 1, "client_secret": 1, "api_calls": 2, "user_agent_string": 1}, fields)
	})

	t.Run("a saved form is usable for login", func(t *testing.T) {
		f := validForm()
		f.UserAgentString = ""
		require.Error(t, f.Validate())

		f = validForm()
		require.NoError(t, f.Validate())
		require.NoError(t, f.Settings().Validate())
	})
}

func TestFormSettings(t *testing.T) {
	s := validForm().Settings()
	assert.Equal(t, Settings{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{"vote", "flair"},
		APICalls:     []string{"https://oauth.reddit.com/api/v1/me/karma", "/api/v1/me/prefs"},
		UserAgent:    "web:drupal:1.0 (by /u/alice)",
	}, s)
}

func TestFormFromSettings(t *testing.T) {
	s := validForm().Settings()

	masked := FormFromSettings(s, false)
	assert.Equal(t, "**cret", masked.ClientSecret)
	assert.Equal(t, "vote flair", masked.Scopes)
	assert.Equal(t, "https://oauth.reddit.com/api/v1/me/karma\n/api/v1/me/prefs", masked.APICalls)

	assert.Equal(t, "secret", FormFromSettings(s, true).ClientSecret)
	assert.Equal(t, s, FormFromSettings(s, true).Settings())
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, validForm().Settings().Validate())

	err := Settings{ClientID: "id"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
	assert.Contains(t, err.Error(), "client secret")
	assert.Contains(t, err.Error(), "user agent")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Settings{})

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())

	s := validForm().Settings()
	require.NoError(t, store.Save(ctx, s))

	s.Scopes[0] = "mutated"
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vote", "flair"}, loaded.Scopes)
}
