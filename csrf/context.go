package csrf

import "context"

type ctxKey string

const (
	tokenKey ctxKey = "csrf_token_ctx"
	errorKey ctxKey = "csrf_error_ctx"
)

// contextWithToken returns a derived context that stores the given CSRF token.
//
// Params:
// - ctx: base context to attach the token to.
// - tok: CSRF token string to store.
//
// Returns:
// - a new context containing the token.
func contextWithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

// tokenFromContext extracts the CSRF token from ctx, if present.
func tokenFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(tokenKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func contextWithError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, errorKey, err)
}

func errorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(errorKey).(error)
	return err
}
