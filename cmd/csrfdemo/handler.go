package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/JeanGrijp/go-sessioncsrf/csrf"
	"github.com/JeanGrijp/go-sessioncsrf/internal/config"
	"github.com/JeanGrijp/go-sessioncsrf/internal/obs"
	"github.com/JeanGrijp/go-sessioncsrf/metrics"
	"github.com/JeanGrijp/go-sessioncsrf/session"
)

const webhookPath = "/webhook"

type sessionStore interface {
	csrf.SessionStore
	Destroy(w http.ResponseWriter, r *http.Request) error
}

func newHandler(cfg *config.Config, logger zerolog.Logger, store sessionStore, reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, error) {
	ccfg := cfg.CSRF()
	ccfg.Store = store
	if len(ccfg.ExemptPaths) == 0 {
		ccfg.ExemptPaths = []string{webhookPath}
	}

	if cfg.MetricsEnabled {
		col, err := metrics.New(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		ccfg.Diagnostics = col.Observe
	}

	p, err := csrf.New(ccfg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(p.Protect)

		r.Method(http.MethodGet, "/csrf-token", p.TokenHandler())

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tok, _ := csrf.TokenFromContext(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{"message": "hello", "csrf_token": tok})
		})

		r.Post("/transfer", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]any{"status": "ok"})
		})

		r.Post(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			err := store.Destroy(w, r)
			if err != nil && !errors.Is(err, session.ErrNoSession) {
				logger.Error().Err(err).Msg("destroy session")
				http.Error(w, "failed to end session", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
