package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
	"github.com/JeanGrijp/go-sessioncsrf/session"
)

func TestObserveCountsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.Observe(csrf.Event{Decision: csrf.Decision{Outcome: csrf.Pass, State: csrf.NoSecret, Rotated: true}})
	c.Observe(csrf.Event{Decision: csrf.Decision{Outcome: csrf.Pass, State: csrf.HasSecret, Exemption: csrf.ExemptByMethod}})
	c.Observe(csrf.Event{Decision: csrf.Decision{Outcome: csrf.Reject, State: csrf.HasSecret, Reason: csrf.ReasonTokenMissing}})
	c.Observe(csrf.Event{Decision: csrf.Decision{Outcome: csrf.Reject, State: csrf.HasSecret, Reason: csrf.ReasonTokenMissing}})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Decisions.WithLabelValues("pass", "no_secret", "none", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Decisions.WithLabelValues("pass", "has_secret", "method", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Decisions.WithLabelValues("reject", "has_secret", "none", "token missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rotations.WithLabelValues("no_secret")))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.Observe(csrf.Event{Decision: csrf.Decision{Outcome: csrf.Pass}})
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Decisions.WithLabelValues("pass", "no_secret", "none", "")))
}

func TestCollectorAsDiagnosticsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	p, err := csrf.New(csrf.Config{Store: session.NewMemory(session.Options{}), Diagnostics: c.Observe})
	require.NoError(t, err)
	h := p.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rotations.WithLabelValues("no_secret")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Decisions))
}
