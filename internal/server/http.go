package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/config"
	"github.com/gokatarajesh/kbc-quiz/internal/logging"
	httperrors "github.com/gokatarajesh/kbc-quiz/pkg/http/errors"
)

// Pinger reports whether session storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteRegistrar mounts feature routes on the shared mux.
type RouteRegistrar interface {
	Register(mux *http.ServeMux)
}

// RequestObserver records per-request latency.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// NewHTTPServer wires base routes (health, metrics, ping) plus the quiz routes.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, storage Pinger, quizRoutes RouteRegistrar, gatherer prometheus.Gatherer, observer RequestObserver) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := storage.Ping(ctx); err != nil {
			reqLogger := logging.FromContext(ctx)
			reqLogger.Error().Err(err).Msg("storage ping failed")
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeUpstreamError, "Session storage unreachable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if quizRoutes != nil {
		quizRoutes.Register(mux)
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           withRequestLogging(mux, logger, observer),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withRequestLogging tags each request with an id, stores the request logger in the
// context and logs the outcome.
func withRequestLogging(next http.Handler, logger zerolog.Logger, observer RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLogger := logger.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(logging.IntoContext(r.Context(), reqLogger))
		next.ServeHTTP(rec, req)

		elapsed := time.Since(start)
		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		if observer != nil {
			observer.ObserveRequest(route, rec.status, elapsed)
		}

		event := reqLogger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = reqLogger.Error()
		}
		event.Int("status", rec.status).Dur("duration", elapsed).Msg("request served")
	})
}
