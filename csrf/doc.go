// Package csrf provides CSRF protection for Go net/http servers using the
// double-submit cookie pattern backed by a server-side secret.
//
// How it works
//   - Every client session holds a random secret in server-side session
//     state (see SessionStore). The secret never leaves the server.
//   - The client holds a token in a cookie. A token is a random salt plus an
//     HMAC of that salt keyed by the secret, so the server can verify it
//     without storing it.
//   - First contact (no secret yet): a secret and token are minted and the
//     request passes, whatever its method.
//   - Exempt requests (methods, exact paths, or a non-empty bypass header)
//     pass without touching the credentials.
//   - Every other request must carry a token that verifies against the
//     secret. On success the token is rotated; on failure the request is
//     rejected with 403 and a reason: "token missing", "secret missing" or
//     "token invalid".
//
// # Configuration
//
// All behavior is driven by Config. Key fields include:
//   - Store (required): the session collaborator
//   - CookieName (default: "csrf") and Cookie, the cookie policy
//   - ExemptMethods (default: GET, HEAD, OPTIONS) and ExemptPaths
//   - BypassHeader (default: "X-No-Csrf"), DisableBypassHeader
//   - ErrorPayload (default: {"success": false}) and ErrorHandler
//   - Debug and Diagnostics for observing decisions
//   - EnforceOriginCheck and AllowedOrigin (empty means use the request host)
//
// Configuration is validated once by New; an invalid Config yields a
// *ConfigError and no Protector.
//
// Typical usage
//
//	store := session.NewMemory(session.Options{})
//	p, err := csrf.New(csrf.Config{Store: store, Cookie: csrf.CookiePolicy{Secure: true}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", p.Protect(appMux))
//
// In handlers, you can read the token in effect for this request:
//
//	if tok, ok := csrf.TokenFromContext(r.Context()); ok {
//	    // use tok in templates or return it from an endpoint
//	}
//
// To handle rejections yourself, set Config.ErrorHandler and call
// FailureReason(r) inside it.
package csrf
