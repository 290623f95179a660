package csrf

import (
	"net/http"
)

// Secret is the per-client value kept in server-side session state. It is
// never sent to the client.
type Secret string

// Token is the client-visible value carried in the token cookie.
type Token string

// Optional is a value that may be absent.
type Optional[T ~string] struct {
	v  T
	ok bool
}

func Some[T ~string](v T) Optional[T] { return Optional[T]{v: v, ok: true} }

func None[T ~string]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.v, o.ok }

// IsEmpty reports whether the value is absent or present with zero length.
func (o Optional[T]) IsEmpty() bool { return !o.ok || len(o.v) == 0 }

func (o Optional[T]) String() string {
	if !o.ok {
		return "<absent>"
	}
	return string(o.v)
}

// Pair is the secret and token seen or written during one request cycle.
type Pair struct {
	Secret Optional[Secret]
	Token  Optional[Token]
}

// SessionStore is the session collaborator. Secret returns None when the
// session has no secret yet; SetSecret overwrites any prior value. w is
// passed so implementations can issue their own session cookie.
type SessionStore interface {
	Secret(r *http.Request) (Optional[Secret], error)
	SetSecret(w http.ResponseWriter, r *http.Request, secret Secret) error
}

// CredentialStore reads and writes a Pair: the secret through the session
// collaborator and the token through the named cookie. It does no validation.
type CredentialStore struct {
	Sessions   SessionStore
	CookieName string
	Policy     CookiePolicy
}

// Load returns the secret held in the session and the token sent in the cookie.
func (s CredentialStore) Load(r *http.Request) (Pair, error) {
	secret, err := s.Sessions.Secret(r)
	if err != nil {
		return Pair{}, err
	}
	token := None[Token]()
	if c, err := r.Cookie(s.CookieName); err == nil {
		token = Some(Token(c.Value))
	}
	return Pair{Secret: secret, Token: token}, nil
}

// Store writes the secret into the session and sets the token cookie on w.
func (s CredentialStore) Store(w http.ResponseWriter, r *http.Request, pair Pair) error {
	if secret, ok := pair.Secret.Get(); ok {
		if err := s.Sessions.SetSecret(w, r, secret); err != nil {
			return err
		}
	}
	if token, ok := pair.Token.Get(); ok {
		http.SetCookie(w, s.cookie(token))
	}
	return nil
}

func (s CredentialStore) cookie(token Token) *http.Cookie {
	p := s.Policy
	return &http.Cookie{
		Name:        s.CookieName,
		Value:       string(token),
		Path:        p.Path,
		Domain:      p.Domain,
		MaxAge:      p.MaxAge,
		Expires:     p.Expires,
		SameSite:    p.SameSite,
		Secure:      p.Secure,
		HttpOnly:    p.HttpOnly,
		Partitioned: p.Partitioned,
	}
}
