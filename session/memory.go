package session

import (
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
)

// Memory keeps sessions in process memory. It suits a single instance and
// tests; use Redis when several instances share clients.
type Memory struct {
	ids
	c *gocache.Cache
}

func NewMemory(opts Options) *Memory {
	opts = opts.withDefaults()
	return &Memory{
		ids: ids{opts: opts},
		c:   gocache.New(opts.TTL, time.Minute),
	}
}

func (m *Memory) key(id string) string {
	return m.opts.Prefix + ":" + id + ":" + SecretField
}

// Secret returns the secret of the request's session, if it has one.
func (m *Memory) Secret(r *http.Request) (csrf.Optional[csrf.Secret], error) {
	id, ok := m.current(r)
	if !ok {
		return csrf.None[csrf.Secret](), nil
	}
	v, found := m.c.Get(m.key(id))
	if !found {
		return csrf.None[csrf.Secret](), nil
	}
	s, _ := v.(string)
	return csrf.Some(csrf.Secret(s)), nil
}

// SetSecret stores secret in the request's session, starting one if needed.
// Writing refreshes the session TTL.
func (m *Memory) SetSecret(w http.ResponseWriter, r *http.Request, secret csrf.Secret) error {
	id := m.ensure(w, r)
	m.c.Set(m.key(id), string(secret), gocache.DefaultExpiration)
	return nil
}

// Destroy drops the request's session and expires its cookie.
func (m *Memory) Destroy(w http.ResponseWriter, r *http.Request) error {
	id, ok := m.current(r)
	if !ok {
		return ErrNoSession
	}
	m.c.Delete(m.key(id))
	m.expire(w)
	return nil
}

// Len reports the number of live sessions.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
