package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	ternary "github.com/julien040/go-ternary"
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

// DefaultCookieName is used when CookieOptions.Name is empty.
const DefaultCookieName = "redditauth_sid"

// Middleware attaches a Session to every request, issuing a new random
// session id cookie when the request has none.
//
// SameSite is Lax: the browser must send the cookie on the top-level GET
// redirect back from Reddit.
func Middleware(store Store, opts CookieOptions) func(http.Handler) http.Handler {
	name := ternary.If(opts.Name != "", opts.Name, DefaultCookieName)
	path := ternary.If(opts.Path != "", opts.Path, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie := &http.Cookie{
				Name:     name,
				Path:     path,
				MaxAge:   int(opts.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			}
			var id string
			if c, err := r.Cookie(name); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				issue(w, cookie, id)
			}
			sess := New(store, id)
			sess.cookie = cookie
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func issue(w http.ResponseWriter, tmpl *http.Cookie, id string) {
	c := *tmpl
	c.Value = id
	http.SetCookie(w, &c)
}

// Rotate moves the request's session to a new random id and sends the new
// cookie. Values under carry are copied to the new id; everything the login
// flow stored under the old id is deleted. The Session in the request context
// refers to the new id afterwards.
func Rotate(w http.ResponseWriter, r *http.Request, carry ...string) error {
	ctx := r.Context()
	sess := FromContext(ctx)
	if sess == nil || sess.cookie == nil {
		return errors.New("session: no session middleware on request")
	}

	newID := uuid.NewString()
	for _, key := range carry {
		v, err := sess.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		if v == "" {
			continue
		}
		if err := sess.store.Set(ctx, newID, key, v); err != nil {
			return fmt.Errorf("copying %s: %w", key, err)
		}
	}
	if err := sess.store.Delete(ctx, sess.id, flowKeys...); err != nil {
		return fmt.Errorf("clearing old session: %w", err)
	}

	sess.id = newID
	issue(w, sess.cookie, newID)
	return nil
}
