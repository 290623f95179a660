package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
)

func newRedisStore(t *testing.T, opts Options) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedis(rdb, opts), mr
}

func TestRedisSetThenGet(t *testing.T) {
	s, mr := newRedisStore(t, Options{Prefix: "test", TTL: time.Hour})

	rec := httptest.NewRecorder()
	require.NoError(t, s.SetSecret(rec, httptest.NewRequest(http.MethodGet, "/", nil), "s3cret"))
	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, sid)

	key := "test:" + sid.Value
	assert.Equal(t, "s3cret", mr.HGet(key, SecretField))
	assert.Equal(t, time.Hour, mr.TTL(key))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(sid)
	got, err := s.Secret(req)
	require.NoError(t, err)
	v, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, csrf.Secret("s3cret"), v)
}

func TestRedisMissingSession(t *testing.T) {
	s, _ := newRedisStore(t, Options{})

	got, err := s.Secret(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "0b4c8e3e-3f6e-4e0a-9d43-6c1f1a0f9a11"})
	got, err = s.Secret(req)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty(), "unknown session id reads as no secret")
}

func TestRedisExpiry(t *testing.T) {
	s, mr := newRedisStore(t, Options{TTL: time.Minute})

	rec := httptest.NewRecorder()
	require.NoError(t, s.SetSecret(rec, httptest.NewRequest(http.MethodGet, "/", nil), "x"))
	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, sid)

	mr.FastForward(2 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sid)
	got, err := s.Secret(req)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestRedisUnavailable(t *testing.T) {
	s, mr := newRedisStore(t, Options{})
	mr.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "0b4c8e3e-3f6e-4e0a-9d43-6c1f1a0f9a11"})
	_, err := s.Secret(req)
	assert.Error(t, err)

	err = s.SetSecret(httptest.NewRecorder(), req, "x")
	assert.Error(t, err)
}

func TestRedisDestroy(t *testing.T) {
	s, mr := newRedisStore(t, Options{Prefix: "test"})

	rec := httptest.NewRecorder()
	require.NoError(t, s.SetSecret(rec, httptest.NewRequest(http.MethodGet, "/", nil), "x"))
	sid := cookieNamed(rec.Result().Cookies(), DefaultCookieName)
	require.NotNil(t, sid)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sid)
	require.NoError(t, s.Destroy(httptest.NewRecorder(), req))
	assert.False(t, mr.Exists("test:"+sid.Value))
}
