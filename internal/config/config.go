// Package config loads the demo server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
)

// Config holds the demo server configuration. Every field maps to a
// CSRFDEMO_* environment variable: CSRFDEMO_COOKIE_MAX_AGE is read as
// the koanf key cookie.max.age.
type Config struct {
	Addr      string `validate:"required"`
	LogFormat string `validate:"oneof=json console text"`
	LogLevel  string `validate:"oneof=trace debug info warn error"`

	SessionDriver string        `validate:"oneof=memory redis"`
	RedisURL      string        `validate:"required_if=SessionDriver redis"`
	SessionTTL    time.Duration `validate:"gt=0"`

	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	CookieMaxAge   int `validate:"gte=0"`

	ExemptMethods       []string
	ExemptPaths         []string `validate:"dive,startswith=/"`
	BypassHeader        string
	DisableBypassHeader bool
	RotateSecret        bool
	Debug               bool

	EnforceOriginCheck bool
	AllowedOrigin      string

	MetricsEnabled bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

const envPrefix = "CSRFDEMO_"

// defaults are set on koanf before the environment is merged over them.
var defaults = map[string]any{
	"addr":            ":8080",
	"log.format":      "json",
	"log.level":       "info",
	"session.driver":  "memory",
	"session.ttl":     "24h",
	"metrics.enabled": true,
}

// listKeys hold comma separated values.
var listKeys = map[string]bool{
	"exempt.methods": true,
	"exempt.paths":   true,
}

// envKey maps CSRFDEMO_SESSION_TTL to session.ttl and drops empty variables.
func envKey(name, value string) (string, any) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, envPrefix)), "_", ".")
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// Load reads configuration from CSRFDEMO_* environment variables, after
// loading an optional .env file into the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		Addr:                k.String("addr"),
		LogFormat:           strings.ToLower(k.String("log.format")),
		LogLevel:            strings.ToLower(k.String("log.level")),
		SessionDriver:       strings.ToLower(k.String("session.driver")),
		RedisURL:            k.String("redis.url"),
		SessionTTL:          k.Duration("session.ttl"),
		CookieName:          k.String("cookie.name"),
		CookieDomain:        k.String("cookie.domain"),
		CookieSecure:        k.Bool("cookie.secure"),
		CookieSameSite:      sameSiteMode(k.String("cookie.samesite")),
		CookieMaxAge:        k.Int("cookie.max.age"),
		BypassHeader:        k.String("bypass.header"),
		DisableBypassHeader: k.Bool("disable.bypass.header"),
		RotateSecret:        k.Bool("rotate.secret"),
		Debug:               k.Bool("debug"),
		EnforceOriginCheck:  k.Bool("enforce.origin.check"),
		AllowedOrigin:       k.String("allowed.origin"),
		MetricsEnabled:      k.Bool("metrics.enabled"),
	}
	if k.Exists("exempt.methods") {
		cfg.ExemptMethods = k.Strings("exempt.methods")
	}
	if k.Exists("exempt.paths") {
		cfg.ExemptPaths = k.Strings("exempt.paths")
	}
	// The token cookie must not expire before the session holding its secret.
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = int(cfg.SessionTTL / time.Second)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if time.Duration(c.CookieMaxAge)*time.Second < c.SessionTTL {
		return fmt.Errorf("invalid config: CookieMaxAge %ds is shorter than SessionTTL %s", c.CookieMaxAge, c.SessionTTL)
	}
	return nil
}

// CSRF returns the protector configuration. The session store is left for
// the caller to set.
func (c *Config) CSRF() csrf.Config {
	return csrf.Config{
		CookieName: c.CookieName,
		Cookie: csrf.CookiePolicy{
			Path:     "/",
			Domain:   c.CookieDomain,
			MaxAge:   c.CookieMaxAge,
			Secure:   c.CookieSecure,
			SameSite: c.CookieSameSite,
		},
		ExemptMethods:       c.ExemptMethods,
		ExemptPaths:         c.ExemptPaths,
		BypassHeader:        c.BypassHeader,
		DisableBypassHeader: c.DisableBypassHeader,
		RotateSecret:        c.RotateSecret,
		Debug:               c.Debug,
		EnforceOriginCheck:  c.EnforceOriginCheck,
		AllowedOrigin:       c.AllowedOrigin,
	}
}

func sameSiteMode(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteDefaultMode
}
