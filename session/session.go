// Package session provides session stores that hold the CSRF secret for
// net/http servers. Each client is identified by an opaque session-id
// cookie; the secret lives server-side under SecretField.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SecretField is the session property holding the CSRF secret.
	SecretField = "csrf.secret"
	// DefaultCookieName names the session-id cookie.
	DefaultCookieName = "sid"
	// DefaultTTL bounds how long an idle session is kept.
	DefaultTTL = 24 * time.Hour
)

// ErrNoSession is returned by Destroy when the request carries no session.
var ErrNoSession = errors.New("session: no session cookie")

// Options configures the session-id cookie and the session lifetime.
type Options struct {
	CookieName string
	TTL        time.Duration
	Path       string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	// Prefix namespaces keys in shared backends such as Redis.
	Prefix string
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.Prefix == "" {
		o.Prefix = "csrf:sess"
	}
	return o
}

// ids reads and issues session-id cookies.
type ids struct {
	opts Options
}

// current returns the session id sent by the client, if any.
func (c ids) current(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.opts.CookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	if _, err := uuid.Parse(ck.Value); err != nil {
		return "", false
	}
	return ck.Value, true
}

// ensure returns the client's session id, issuing a new one on w when the
// request has none.
func (c ids) ensure(w http.ResponseWriter, r *http.Request) string {
	if id, ok := c.current(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, c.cookie(id, c.opts.TTL))
	return id
}

// expire tells the client to drop its session cookie.
func (c ids) expire(w http.ResponseWriter) {
	ck := c.cookie("", 0)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, ck)
}

func (c ids) cookie(value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.opts.CookieName,
		Value:    value,
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		Secure:   c.opts.Secure,
		HttpOnly: true,
		SameSite: c.opts.SameSite,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl.Seconds())
		ck.Expires = time.Now().Add(ttl).UTC()
	}
	return ck
}
