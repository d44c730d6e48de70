package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	ternary "github.com/julien040/go-ternary"
	"go.uber.org/zap"

	"github.com/Suhaibinator/redditauth/pkg/login"
	"github.com/Suhaibinator/redditauth/pkg/session"
	"github.com/Suhaibinator/redditauth/pkg/settings"
	"github.com/Suhaibinator/redditauth/pkg/users"
)

var (
	loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<title>Log in</title>
<h1>Log in</h1>
{{if .}}<p class="messages messages--error">{{.}}</p>{{end}}
<p><a href="/user/login/reddit">Log in with Reddit</a></p>
`))
	homePage = template.Must(template.New("home").Parse(`<!doctype html>
<title>Reddit login</title>
{{if .}}<h1>Welcome, {{.Name}}</h1>
{{if .AvatarURL}}<img src="{{.AvatarURL}}" alt="" width="64" height="64">{{end}}
<p>Signed in with Reddit account {{.ExternalID}}.</p>
{{else}}<h1>Reddit login</h1>
<p><a href="/user/login/reddit">Log in with Reddit</a></p>
{{end}}`))
)

// handleRedditLogin redirects the browser to Reddit.
func (s *Server) handleRedditLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	req, err := s.opts.Coordinator.InitiateLogin(r.Context(), sess, r.URL.Query().Get("destination"))
	if err != nil {
		s.failLogin(w, r, sess, login.UserMessage(err))
		return
	}
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// handleRedditCallback handles the redirect back from Reddit.
func (s *Server) handleRedditCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := LogEnricher(ctx, s.logger)
	sess := session.FromContext(ctx)

	res, err := s.opts.Coordinator.HandleCallback(ctx, sess, r.URL.Query())
	if err != nil {
		s.failLogin(w, r, sess, login.UserMessage(err))
		return
	}

	identity, err := res.Identity()
	if err != nil {
		logger.Error("Failed to build identity", zap.Error(err))
		s.failLogin(w, r, sess, login.MessageRetry)
		return
	}
	account, err := s.opts.Accounts.AuthenticateUser(ctx, identity)
	if err != nil {
		logger.Error("Failed to authenticate user", zap.String("reddit_id", identity.ExternalID), zap.Error(err))
		s.failLogin(w, r, sess, login.MessageRetry)
		return
	}
	if err := session.Rotate(w, r); err != nil {
		logger.Error("Failed to rotate session id", zap.Error(err))
		s.failLogin(w, r, sess, login.MessageRetry)
		return
	}
	if err := sess.Set(ctx, session.KeyUserID, account.ID); err != nil {
		logger.Error("Failed to store user in session", zap.Error(err))
		s.failLogin(w, r, sess, login.MessageRetry)
		return
	}

	http.Redirect(w, r, ternary.If(res.Destination != "", res.Destination, "/"), http.StatusFound)
}

// failLogin flashes message and sends the browser to the login page.
func (s *Server) failLogin(w http.ResponseWriter, r *http.Request, sess *session.Session, message string) {
	if err := sess.Set(r.Context(), session.KeyFlash, message); err != nil {
		LogEnricher(r.Context(), s.logger).Warn("Failed to store flash message", zap.Error(err))
	}
	http.Redirect(w, r, PathLogin, http.StatusFound)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	message, err := session.FromContext(r.Context()).Take(r.Context(), session.KeyFlash)
	if err != nil {
		LogEnricher(r.Context(), s.logger).Warn("Failed to read flash message", zap.Error(err))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPage.Execute(w, message)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var account *users.Account
	if uid, err := session.FromContext(ctx).Get(ctx, session.KeyUserID); err == nil && uid != "" {
		account, err = s.opts.Accounts.Account(ctx, uid)
		if err != nil {
			LogEnricher(ctx, s.logger).Warn("Session refers to unknown account", zap.String("account_id", uid), zap.Error(err))
			account = nil
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = homePage.Execute(w, account)
}

type settingsResponse struct {
	settings.Form
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.opts.Settings.Load(r.Context())
	if err != nil {
		LogEnricher(r.Context(), s.logger).Error("Failed to load settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load settings"})
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Form:        settings.FormFromSettings(current, false),
		RedirectURL: s.opts.RedirectURL,
	})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	logger := LogEnricher(r.Context(), s.logger)

	var form settings.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	current, err := s.opts.Settings.Load(r.Context())
	if err != nil {
		logger.Error("Failed to load settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load settings"})
		return
	}
	// Re-submitting the masked secret keeps the stored one.
	if current.ClientSecret != "" && form.ClientSecret == settings.FormFromSettings(current, false).ClientSecret {
		form.ClientSecret = current.ClientSecret
	}

	if err := form.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": settings.FieldErrors(err)})
		return
	}
	if err := s.opts.Settings.Save(r.Context(), form.Settings()); err != nil {
		logger.Error("Failed to save settings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save settings"})
		return
	}
	logger.Info("Reddit login settings saved")
	w.WriteHeader(http.StatusNoContent)
}
