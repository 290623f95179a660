package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
)

// Redis keeps each session as a hash at "<prefix>:<id>" with the secret
// under SecretField. The key expires after the session TTL.
type Redis struct {
	ids
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient, opts Options) *Redis {
	return &Redis{
		ids:    ids{opts: opts.withDefaults()},
		client: client,
	}
}

func (s *Redis) key(id string) string {
	return s.opts.Prefix + ":" + id
}

// Secret returns the secret of the request's session, if it has one.
func (s *Redis) Secret(r *http.Request) (csrf.Optional[csrf.Secret], error) {
	id, ok := s.current(r)
	if !ok {
		return csrf.None[csrf.Secret](), nil
	}
	v, err := s.client.HGet(r.Context(), s.key(id), SecretField).Result()
	if errors.Is(err, redis.Nil) {
		return csrf.None[csrf.Secret](), nil
	}
	if err != nil {
		return csrf.None[csrf.Secret](), fmt.Errorf("session: redis hget: %w", err)
	}
	return csrf.Some(csrf.Secret(v)), nil
}

// SetSecret stores secret in the request's session, starting one if needed,
// and refreshes the session TTL.
func (s *Redis) SetSecret(w http.ResponseWriter, r *http.Request, secret csrf.Secret) error {
	id := s.ensure(w, r)
	key := s.key(id)
	_, err := s.client.TxPipelined(r.Context(), func(pipe redis.Pipeliner) error {
		pipe.HSet(r.Context(), key, SecretField, string(secret))
		pipe.Expire(r.Context(), key, s.opts.TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: redis hset: %w", err)
	}
	return nil
}

// Destroy deletes the request's session and expires its cookie.
func (s *Redis) Destroy(w http.ResponseWriter, r *http.Request) error {
	id, ok := s.current(r)
	if !ok {
		return ErrNoSession
	}
	if err := s.client.Del(r.Context(), s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	s.expire(w)
	return nil
}
