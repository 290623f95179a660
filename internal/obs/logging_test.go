package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json", "warn")
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, zerolog.InfoLevel, newLogger(&buf, "json", "bogus").GetLevel())
}

func TestRequestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger{Logger: l}.Middleware)
	r.Post("/transfer", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfer", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http_request", line["message"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/transfer", line["path"])
	assert.Equal(t, float64(http.StatusForbidden), line["status"])
	assert.NotEmpty(t, line["request_id"])
}
