// Package csrfgin adapts the csrf protector to gin.
package csrfgin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
	"github.com/JeanGrijp/go-sessioncsrf/session"
)

// TokenKey is the gin context key holding the effective token.
const TokenKey = "csrf_token"

// ErrNoSession is returned by SessionStore when the sessions middleware did
// not run before Middleware.
var ErrNoSession = errors.New("csrfgin: sessions middleware not installed")

type sessionKey struct{}

type options struct {
	forward bool
}

type Option func(*options)

// WithForwarding aborts rejected requests with c.AbortWithError instead of
// writing the JSON body, leaving the response to an error-handling middleware.
func WithForwarding() Option {
	return func(o *options) { o.forward = true }
}

// Middleware runs p for every request on the route group. Rejections write
// 403 with the protector's JSON body, or are recorded in c.Errors when
// forwarding is on (or p has an ErrorHandler).
func Middleware(p *csrf.Protector, opts ...Option) gin.HandlerFunc {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	forward := o.forward || p.Forwarding()

	return func(c *gin.Context) {
		r := c.Request
		if v, ok := c.Get(sessions.DefaultKey); ok {
			if s, ok := v.(sessions.Session); ok {
				r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, s))
			}
		}

		d, err := p.Decide(c.Writer, r)
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		if rej := d.Err(); rej != nil {
			if forward {
				_ = c.AbortWithError(http.StatusForbidden, rej)
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, p.RejectionBody(d.Reason))
			return
		}

		if tok, ok := d.EffectiveToken(); ok {
			r = r.WithContext(csrf.WithToken(r.Context(), string(tok)))
			c.Set(TokenKey, string(tok))
		}
		c.Request = r
		c.Next()
	}
}

// Token returns the effective token for the current request.
func Token(c *gin.Context) (string, bool) {
	return csrf.TokenFromContext(c.Request.Context())
}

// SessionStore keeps the secret in the gin-contrib/sessions session of the
// request. sessions.Sessions must be installed before Middleware.
//
// The sessions backend must keep values on the server (memstore, redis,
// postgres, ...). cookie.NewStore serializes the whole session into the
// client's cookie, and a client that can read its secret can mint valid
// tokens on its own.
type SessionStore struct{}

func (SessionStore) Secret(r *http.Request) (csrf.Optional[csrf.Secret], error) {
	s, ok := r.Context().Value(sessionKey{}).(sessions.Session)
	if !ok {
		return csrf.None[csrf.Secret](), ErrNoSession
	}
	v, ok := s.Get(session.SecretField).(string)
	if !ok {
		return csrf.None[csrf.Secret](), nil
	}
	return csrf.Some(csrf.Secret(v)), nil
}

func (SessionStore) SetSecret(_ http.ResponseWriter, r *http.Request, secret csrf.Secret) error {
	s, ok := r.Context().Value(sessionKey{}).(sessions.Session)
	if !ok {
		return ErrNoSession
	}
	s.Set(session.SecretField, string(secret))
	return s.Save()
}
