// Package csrf provides session-bound double-submit-cookie CSRF protection middleware.
package csrf

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCookieName is the token cookie name used when Config.CookieName is empty.
	DefaultCookieName = "csrf"
	// DefaultBypassHeader is the request header that skips the check when it carries a value.
	DefaultBypassHeader = "X-No-Csrf"
)

// ErrInvalidConfig is wrapped by every *ConfigError returned from New.
var ErrInvalidConfig = errors.New("csrf: invalid config")

// ConfigError reports a configuration field rejected at construction time.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("csrf: invalid config: %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// CookiePolicy holds the attributes applied to the token cookie. The protector
// copies them onto every Set-Cookie it writes and never interprets them.
type CookiePolicy struct {
	Path        string
	Domain      string
	MaxAge      int // in seconds
	Expires     time.Time
	Secure      bool
	HttpOnly    bool
	SameSite    http.SameSite
	Partitioned bool
}

type Config struct {
	// Cookie
	Cookie     CookiePolicy
	CookieName string `validate:"required,httptoken"`

	// Session collaborator holding the per-client secret. Required.
	Store SessionStore `validate:"-"`

	// Exemptions. A nil ExemptMethods means GET, HEAD and OPTIONS;
	// an empty non-nil slice exempts nothing.
	ExemptMethods       []string `validate:"dive,required,httptoken"`
	ExemptPaths         []string `validate:"dive,required,startswith=/"`
	BypassHeader        string   `validate:"omitempty,httptoken"`
	DisableBypassHeader bool

	// Rejection. ErrorPayload is merged into the JSON body after "message";
	// nil means {"success": false}. When ErrorHandler is set, rejections are
	// forwarded to it instead of being written directly.
	ErrorPayload map[string]any `validate:"-"`
	ErrorHandler http.Handler   `validate:"-"`

	// Debug adds a sink logging every decision through the global zerolog
	// logger. Diagnostics, when set, is invoked regardless of Debug.
	Debug       bool
	Diagnostics DiagnosticsFunc `validate:"-"`

	// RotateSecret replaces the secret as well as the token after every
	// successful check, making each token single-use.
	RotateSecret bool

	// Extra security
	EnforceOriginCheck bool
	AllowedOrigin      string // if empty, uses r.Host

	Codec *Codec `validate:"-"`
}

type Protector struct {
	cfg        Config
	codec      *Codec
	creds      CredentialStore
	classifier Classifier
	sink       DiagnosticsFunc
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("httptoken", func(fl validator.FieldLevel) bool {
		return isToken(fl.Field().String())
	})
	return v
}

// New builds a Protector from cfg. Defaults are applied first, then the result
// is validated; a misconfigured protector is never returned.
func New(cfg Config) (*Protector, error) {
	// reasonable defaults
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = "/"
	}
	if cfg.Cookie.SameSite == 0 {
		cfg.Cookie.SameSite = http.SameSiteLaxMode
	}
	if cfg.ExemptMethods == nil {
		cfg.ExemptMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	}
	if cfg.ErrorPayload == nil {
		cfg.ErrorPayload = map[string]any{"success": false}
	}
	if cfg.DisableBypassHeader {
		cfg.BypassHeader = ""
	} else if cfg.BypassHeader == "" {
		cfg.BypassHeader = DefaultBypassHeader
	}
	if cfg.Codec == nil {
		cfg.Codec = NewCodec()
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	var sinks []DiagnosticsFunc
	if cfg.Debug {
		sinks = append(sinks, LogSink(log.Logger))
	}
	if cfg.Diagnostics != nil {
		sinks = append(sinks, cfg.Diagnostics)
	}

	return &Protector{
		cfg:        cfg,
		codec:      cfg.Codec,
		creds:      CredentialStore{Sessions: cfg.Store, CookieName: cfg.CookieName, Policy: cfg.Cookie},
		classifier: NewClassifier(cfg.ExemptMethods, cfg.ExemptPaths, cfg.BypassHeader),
		sink:       MultiSink(sinks...),
	}, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(cfg Config) *Protector {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func validateConfig(cfg Config) error {
	if cfg.Store == nil {
		return &ConfigError{Field: "Config.Store", Msg: "must be set"}
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{Field: fe.Namespace(), Msg: describe(fe)}
	}
	return &ConfigError{Field: "Config", Msg: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "httptoken":
		return fmt.Sprintf("%q is not a valid HTTP token", fe.Value())
	case "startswith":
		return fmt.Sprintf("%q must start with %q", fe.Value(), fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}

// isToken reports whether s is a non-empty RFC 7230 token, which covers
// cookie names, header names and method names.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte(`()<>@,;:\"/[]?={}`, c) >= 0 {
			return false
		}
	}
	return true
}
