package csrf

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// validateOriginOrReferer checks whether the request is same-site according to
// the allowed host policy. When allowed is empty, it falls back to r.Host.
// It prefers the Origin header; if empty, it falls back to Referer.
//
// Params:
//   - r: the incoming request containing Origin/Referer headers.
//   - allowed: the allowed host (domain[:port]) to be considered same-site;
//     if empty, r.Host is used.
//
// Returns:
// - nil when origin/referrer is acceptable; otherwise an error describing the issue.
func validateOriginOrReferer(r *http.Request, allowed string) error {
	host := allowed
	if host == "" {
		host = r.Host
	}

	origin := r.Header.Get("Origin")
	ref := r.Header.Get("Referer")

	switch {
	case origin == "" && ref == "":
		return errors.New("no origin/referer")
	case origin != "":
		if !sameSite(origin, host) {
			return errors.New("bad origin")
		}
	case !sameSite(ref, host):
		return errors.New("bad referer")
	}
	return nil
}

// sameSite reports whether originOrRef points at allowedHost. Only the host
// (with port, if any) is compared.
func sameSite(originOrRef, allowedHost string) bool {
	u, err := url.Parse(originOrRef)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, allowedHost)
}
