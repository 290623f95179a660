package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEntropy is returned when the random source cannot supply bytes for a
// secret or a token salt.
var ErrEntropy = errors.New("csrf: random source failed")

const (
	defaultSecretBytes = 32
	defaultSaltBytes   = 16
	tokenSep           = "."
)

// Codec mints secrets and derives and verifies tokens. A token is
//
//	base64url(salt) "." base64url(HMAC-SHA256(secret, salt))
//
// so every derivation from the same secret differs, and verification only
// needs the secret. A Codec holds no mutable state and is safe to share.
type Codec struct {
	random      io.Reader
	secretBytes int
	saltBytes   int
}

type CodecOption func(*Codec)

// WithRandom replaces crypto/rand as the entropy source.
func WithRandom(r io.Reader) CodecOption {
	return func(c *Codec) { c.random = r }
}

// WithSecretBytes sets the number of random bytes in a secret.
func WithSecretBytes(n int) CodecOption {
	return func(c *Codec) {
		if n > 0 {
			c.secretBytes = n
		}
	}
}

// WithSaltBytes sets the number of random bytes in a token salt.
func WithSaltBytes(n int) CodecOption {
	return func(c *Codec) {
		if n > 0 {
			c.saltBytes = n
		}
	}
}

func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		random:      rand.Reader,
		secretBytes: defaultSecretBytes,
		saltBytes:   defaultSaltBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateSecret returns a fresh url-safe random secret.
func (c *Codec) GenerateSecret() (Secret, error) {
	b, err := c.read(c.secretBytes)
	if err != nil {
		return "", err
	}
	return Secret(base64.RawURLEncoding.EncodeToString(b)), nil
}

// DeriveToken returns a new token bound to secret.
func (c *Codec) DeriveToken(secret Secret) (Token, error) {
	salt, err := c.read(c.saltBytes)
	if err != nil {
		return "", err
	}
	sig := sign(secret, salt)
	return Token(base64.RawURLEncoding.EncodeToString(salt) + tokenSep +
		base64.RawURLEncoding.EncodeToString(sig)), nil
}

// Verify reports whether token was derived from secret. Malformed input is
// reported as false, never as an error.
func (c *Codec) Verify(secret Secret, token Token) bool {
	if secret == "" || token == "" {
		return false
	}
	saltB64, sigB64, ok := strings.Cut(string(token), tokenSep)
	if !ok || strings.Contains(sigB64, tokenSep) {
		return false
	}
	salt, err1 := base64.RawURLEncoding.DecodeString(saltB64)
	sig, err2 := base64.RawURLEncoding.DecodeString(sigB64)
	if err1 != nil || err2 != nil {
		return false
	}
	if len(salt) != c.saltBytes || len(sig) != sha256.Size {
		return false
	}
	return hmac.Equal(sig, sign(secret, salt))
}

// NewPair mints a fresh secret and a token derived from it.
func (c *Codec) NewPair() (Pair, error) {
	secret, err := c.GenerateSecret()
	if err != nil {
		return Pair{}, err
	}
	token, err := c.DeriveToken(secret)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Secret: Some(secret), Token: Some(token)}, nil
}

func (c *Codec) read(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(c.random, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return b, nil
}

func sign(secret Secret, salt []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(salt)
	return mac.Sum(nil)
}
