package csrf

import (
	"net/http"
	"strings"
)

// Exemption is the result of classifying a request against the exemption rules.
type Exemption int

const (
	NotExempt Exemption = iota
	ExemptByMethod
	ExemptByPath
	ExemptByHeader
)

func (e Exemption) String() string {
	switch e {
	case ExemptByMethod:
		return "method"
	case ExemptByPath:
		return "path"
	case ExemptByHeader:
		return "header"
	default:
		return "none"
	}
}

// Classifier decides whether a request skips the token check. Method and path
// membership is exact-match. It is immutable once built.
type Classifier struct {
	methods map[string]struct{}
	paths   map[string]struct{}
	header  string
}

// NewClassifier builds a Classifier. An empty bypassHeader disables the
// header bypass entirely.
func NewClassifier(methods, paths []string, bypassHeader string) Classifier {
	c := Classifier{
		methods: make(map[string]struct{}, len(methods)),
		paths:   make(map[string]struct{}, len(paths)),
		header:  bypassHeader,
	}
	for _, m := range methods {
		c.methods[m] = struct{}{}
	}
	for _, p := range paths {
		c.paths[p] = struct{}{}
	}
	return c
}

// Classify checks the bypass header, then the method, then the path, and
// returns the first match.
func (c Classifier) Classify(method, path string, h http.Header) Exemption {
	if c.bypassRequested(h) {
		return ExemptByHeader
	}
	if _, ok := c.methods[method]; ok {
		return ExemptByMethod
	}
	if _, ok := c.paths[path]; ok {
		return ExemptByPath
	}
	return NotExempt
}

// bypassRequested treats the header as set when its joined values are
// non-empty. Header lookup is case-insensitive.
func (c Classifier) bypassRequested(h http.Header) bool {
	if c.header == "" || h == nil {
		return false
	}
	return strings.Join(h.Values(c.header), ", ") != ""
}
