package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vaultcore/internal/observability"
	"vaultcore/internal/query"
)

// HTTPServer serves the read-only query API plus metrics and health probes.
// All mutations enter the core through the NATS command stream, never HTTP.
type HTTPServer struct {
	srv     *http.Server
	log     zerolog.Logger
	metrics *observability.Metrics
}

// NewHTTPServer wires the query routes.
func NewHTTPServer(addr string, qs *query.Service, hc *observability.HealthChecker, metrics *observability.Metrics) *HTTPServer {
	s := &HTTPServer{
		log:     observability.NewLogger("http"),
		metrics: metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", hc.LivenessHandler)
	mux.HandleFunc("/readyz", hc.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/nav", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "nav", qs.Nav())
	})
	mux.HandleFunc("/v1/fees", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "fees", qs.Fees())
	})
	mux.HandleFunc("/v1/hwm", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "hwm", qs.HWM())
	})
	mux.HandleFunc("/v1/emergency", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "emergency", qs.Emergency())
	})
	mux.HandleFunc("/v1/queues", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "queues", qs.QueueLengths())
	})
	mux.HandleFunc("/v1/queues/deposits", func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		s.writeJSON(w, "pending_deposits", qs.PendingDeposits(offset, limit))
	})
	mux.HandleFunc("/v1/queues/redemptions", func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		s.writeJSON(w, "pending_redemptions", qs.PendingRedemptions(offset, limit))
	})
	mux.HandleFunc("/v1/position", func(w http.ResponseWriter, r *http.Request) {
		holder, err := uuid.Parse(r.URL.Query().Get("holder"))
		if err != nil {
			s.writeError(w, "position", http.StatusBadRequest, "invalid holder uuid")
			return
		}
		s.writeJSON(w, "position", qs.Position(holder))
	})

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener closes. Blocking.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, endpoint string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		if s.metrics != nil {
			s.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
		}
		s.log.Error().Err(err).Str("endpoint", endpoint).Msg("encode response")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, endpoint string, code int, msg string) {
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func pagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
