package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
)

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestMemoryNoSession(t *testing.T) {
	m := NewMemory(Options{})
	got, err := m.Secret(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestMemorySetThenGet(t *testing.T) {
	m := NewMemory(Options{Secure: true})

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSecret(rec, httptest.NewRequest(http.MethodGet, "/", nil), "s3cret"))

	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, sid, "new session must issue a cookie")
	assert.True(t, sid.HttpOnly)
	assert.True(t, sid.Secure)
	assert.Equal(t, int(DefaultTTL.Seconds()), sid.MaxAge)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(sid)
	got, err := m.Secret(req)
	require.NoError(t, err)
	v, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, csrf.Secret("s3cret"), v)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryOverwriteKeepsSession(t *testing.T) {
	m := NewMemory(Options{})
	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSecret(rec, httptest.NewRequest(http.MethodGet, "/", nil), "one"))
	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, sid)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	require.NoError(t, m.SetSecret(rec, req, "two"))
	assert.Nil(t, cookieNamed(rec.Result().Cookies(), DefaultCookieName), "existing session must not be reissued")

	got, err := m.Secret(req)
	require.NoError(t, err)
	v, _ := got.Get()
	assert.Equal(t, csrf.Secret("two"), v)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryIgnoresForgedSessionID(t *testing.T) {
	m := NewMemory(Options{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "../../etc"})

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSecret(rec, req, "x"))
	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, sid, "non-uuid ids are replaced")
	assert.NotEqual(t, "../../etc", sid.Value)
}

func TestMemoryDestroy(t *testing.T) {
	m := NewMemory(Options{})
	assert.ErrorIs(t, m.Destroy(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)), ErrNoSession)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetSecret(rec, httptest.NewRequest(http.MethodGet, "/", nil), "x"))
	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sid)
	rec = httptest.NewRecorder()
	require.NoError(t, m.Destroy(rec, req))

	gone := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, gone)
	assert.Equal(t, -1, gone.MaxAge)

	got, err := m.Secret(req)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
