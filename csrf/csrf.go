package csrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// State is the credential state a request arrives in.
type State int

const (
	NoSecret State = iota
	HasSecret
)

func (s State) String() string {
	if s == HasSecret {
		return "has_secret"
	}
	return "no_secret"
}

// Outcome is the terminal result of a decision.
type Outcome int

const (
	Pass Outcome = iota
	Reject
)

func (o Outcome) String() string {
	if o == Reject {
		return "reject"
	}
	return "pass"
}

// Reason tells why a request was rejected.
type Reason string

const (
	ReasonTokenMissing  Reason = "token missing"
	ReasonSecretMissing Reason = "secret missing"
	ReasonTokenInvalid  Reason = "token invalid"
	ReasonOriginInvalid Reason = "origin invalid"
)

// RejectError is the structured form of a rejection.
type RejectError struct {
	Status int
	Reason Reason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("csrf: %s", e.Reason)
}

// Decision is the result of running the protector against one request.
type Decision struct {
	Outcome   Outcome
	State     State
	Exemption Exemption
	Reason    Reason
	Before    Pair
	After     Pair
	Rotated   bool
}

// Err returns the *RejectError for a rejected decision and nil otherwise.
func (d Decision) Err() error {
	if d.Outcome != Reject {
		return nil
	}
	return &RejectError{Status: http.StatusForbidden, Reason: d.Reason}
}

// EffectiveToken is the token the client holds once the response is applied:
// the freshly written one after a rotation, otherwise the one it sent.
func (d Decision) EffectiveToken() (Token, bool) {
	t, ok := d.After.Token.Get()
	return t, ok && t != ""
}

// Decide runs the credential state machine for r, writing rotated
// credentials to w when needed. A non-nil error means the credentials could
// not be read, minted or written; it is never returned for a rejection.
//
// Behavior:
//   - No secret in the session: mint a pair, write it, pass. This holds for
//     every method, since there is nothing to forge against yet.
//   - Secret present and the request exempt (bypass header, method, path):
//     pass without touching the credentials.
//   - Otherwise require a token, verify it against the secret, and on
//     success rotate the token before passing.
func (p *Protector) Decide(w http.ResponseWriter, r *http.Request) (Decision, error) {
	before, err := p.creds.Load(r)
	if err != nil {
		return Decision{}, fmt.Errorf("csrf: load credentials: %w", err)
	}
	d := Decision{Before: before, After: before}

	if before.Secret.IsEmpty() {
		d.State = NoSecret
		pair, err := p.codec.NewPair()
		if err != nil {
			return d, err
		}
		if err := p.creds.Store(w, r, pair); err != nil {
			return d, fmt.Errorf("csrf: store credentials: %w", err)
		}
		d.After, d.Rotated = pair, true
		return p.finish(r, d), nil
	}

	d.State = HasSecret
	d.Exemption = p.classifier.Classify(r.Method, r.URL.Path, r.Header)
	if d.Exemption != NotExempt {
		return p.finish(r, d), nil
	}

	if p.cfg.EnforceOriginCheck {
		if err := validateOriginOrReferer(r, p.cfg.AllowedOrigin); err != nil {
			return p.reject(r, d, ReasonOriginInvalid), nil
		}
	}
	if before.Token.IsEmpty() {
		return p.reject(r, d, ReasonTokenMissing), nil
	}
	secret, ok := before.Secret.Get()
	if !ok || secret == "" {
		return p.reject(r, d, ReasonSecretMissing), nil
	}
	token, _ := before.Token.Get()
	if !p.codec.Verify(secret, token) {
		return p.reject(r, d, ReasonTokenInvalid), nil
	}

	after, err := p.rotate(w, r, secret)
	if err != nil {
		return d, err
	}
	d.After, d.Rotated = after, true
	return p.finish(r, d), nil
}

// rotate issues a new token after a successful check. The secret is kept
// unless RotateSecret is set, in which case a whole new pair is written.
func (p *Protector) rotate(w http.ResponseWriter, r *http.Request, secret Secret) (Pair, error) {
	if p.cfg.RotateSecret {
		pair, err := p.codec.NewPair()
		if err != nil {
			return Pair{}, err
		}
		if err := p.creds.Store(w, r, pair); err != nil {
			return Pair{}, fmt.Errorf("csrf: store credentials: %w", err)
		}
		return pair, nil
	}
	token, err := p.codec.DeriveToken(secret)
	if err != nil {
		return Pair{}, err
	}
	if err := p.creds.Store(w, r, Pair{Token: Some(token)}); err != nil {
		return Pair{}, fmt.Errorf("csrf: store credentials: %w", err)
	}
	return Pair{Secret: Some(secret), Token: Some(token)}, nil
}

func (p *Protector) reject(r *http.Request, d Decision, reason Reason) Decision {
	d.Outcome, d.Reason = Reject, reason
	return p.finish(r, d)
}

func (p *Protector) finish(r *http.Request, d Decision) Decision {
	if p.sink != nil {
		p.sink(Event{Method: r.Method, Path: r.URL.Path, Decision: d})
	}
	return d
}

// Protect wraps the given next http.Handler and enforces CSRF protection.
//
// A passing request reaches next with the effective token in its context.
// A rejected request gets a 403 JSON body {"message": reason, ...ErrorPayload},
// or, when Config.ErrorHandler is set, is handed to that handler with the
// *RejectError available through FailureReason.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := p.Decide(w, r)
		if err != nil {
			http.Error(w, "failed to set CSRF credentials", http.StatusInternalServerError)
			return
		}

		if rej := d.Err(); rej != nil {
			if p.Forwarding() {
				p.cfg.ErrorHandler.ServeHTTP(w, r.WithContext(contextWithError(r.Context(), rej)))
				return
			}
			p.WriteRejection(w, d.Reason)
			return
		}

		if tok, ok := d.EffectiveToken(); ok {
			r = r.WithContext(contextWithToken(r.Context(), string(tok)))
		}
		next.ServeHTTP(w, r)
	})
}

// Forwarding reports whether rejections go to Config.ErrorHandler.
func (p *Protector) Forwarding() bool {
	return p.cfg.ErrorHandler != nil
}

// RejectionBody returns the JSON body written for reason. ErrorPayload keys
// are merged last and win over "message".
func (p *Protector) RejectionBody(reason Reason) map[string]any {
	body := make(map[string]any, len(p.cfg.ErrorPayload)+1)
	body["message"] = string(reason)
	for k, v := range p.cfg.ErrorPayload {
		body[k] = v
	}
	return body
}

// WriteRejection writes the 403 JSON response for reason.
func (p *Protector) WriteRejection(w http.ResponseWriter, reason Reason) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(p.RejectionBody(reason))
}

// TokenFromContext returns the CSRF token stored in ctx, if present.
//
// Params:
// - ctx: context potentially containing a token set by the middleware.
//
// Returns:
// - token (string) and a boolean indicating whether a token was found.
func TokenFromContext(ctx context.Context) (string, bool) {
	return tokenFromContext(ctx)
}

// WithToken returns a copy of ctx carrying tok as the effective token. It is
// used by adapters for other routers.
func WithToken(ctx context.Context, tok string) context.Context {
	return contextWithToken(ctx, tok)
}

// FailureReason returns the rejection a forwarded request carries, or nil.
func FailureReason(r *http.Request) error {
	return errorFromContext(r.Context())
}

// IsRejection reports whether err is, or wraps, a *RejectError.
func IsRejection(err error) bool {
	var rej *RejectError
	return errors.As(err, &rej)
}

// TokenHandler returns an HTTP handler that writes the current CSRF token.
// This is useful for SPAs to fetch the token and attach it to subsequent requests.
//
// Exempt requests never mint a token. A client whose token cookie expired
// while its session still holds a secret gets 500 "no token" from a GET
// here and "token missing" on every checked route until the session ends,
// so CookiePolicy.MaxAge should be no shorter than the session lifetime.
//
// Returns:
// - http.Handler that responds with the token in the response body (text/plain).
func (p *Protector) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := TokenFromContext(r.Context()); ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.Write([]byte(tok))
			return
		}
		http.Error(w, "no token", http.StatusInternalServerError)
	})
}
