// Package api provides the HTTP server for the co-processor: task
// submission and settlement, operator registration and claims, the admin
// surface, and the live event feed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coproc-network/coproc/internal/app/lifecycle"
	"github.com/coproc-network/coproc/internal/app/settlement"
	"github.com/coproc-network/coproc/internal/app/stake"
	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/events"
	"github.com/coproc-network/coproc/internal/infra/metrics"
	"github.com/coproc-network/coproc/internal/infra/taskstore"
)

// Version is stamped at build time.
var Version = "0.1.0"

// Server is the co-processor HTTP API server.
type Server struct {
	lifecycle  *lifecycle.Controller
	tasks      *taskstore.Store
	operators  *stake.Registry
	settlement *settlement.Engine
	emitter    *events.Emitter

	adminToken     string
	metricsEnabled bool
	healthFn       func() (bool, string)
	minter         Minter
}

// Minter is the optional funding surface behind the admin faucet. The
// in-process ledger implements it; chain-backed adapters do not, which
// leaves the faucet disabled.
type Minter interface {
	Mint(account string, amount int64)
}

// NewServer creates the API server.
func NewServer(ctl *lifecycle.Controller, tasks *taskstore.Store, operators *stake.Registry,
	s *settlement.Engine, em *events.Emitter, adminToken string) *Server {
	return &Server{
		lifecycle:  ctl,
		tasks:      tasks,
		operators:  operators,
		settlement: s,
		emitter:    em,
		adminToken: adminToken,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthFn installs the health checker consulted by /health.
func (s *Server) SetHealthFn(fn func() (bool, string)) { s.healthFn = fn }

// EnableFaucet exposes POST /v1/admin/mint backed by the given minter.
func (s *Server) EnableFaucet(m Minter) { s.minter = m }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(corsMiddleware)
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "coproc is running",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tasks", s.handleRequestComputation)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/proof", s.handleSubmitProof)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)
		r.Get("/benchmark/{proofHash}", s.handleBenchmark)

		r.Post("/operators", s.handleRegisterOperator)
		r.Get("/operators", s.handleListOperators)
		r.Get("/operators/{id}", s.handleGetOperator)
		r.Post("/operators/{id}/claim", s.handleClaim)

		r.Get("/events", s.handleListEvents)
		r.Get("/events/live", s.handleEventsSSE)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/slash", s.handleSlash)
			r.Post("/base-reward", s.handleSetBaseReward)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/mint", s.handleMint)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthFn != nil {
		if ok, detail := s.healthFn(); !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"detail": detail,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAdmin gates the admin surface behind the configured bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" || r.Header.Get("Authorization") != "Bearer "+s.adminToken {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrNotRegistered):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTaskAlreadyCompleted),
		errors.Is(err, domain.ErrTaskNotCancellable),
		errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrDuplicateTask):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInsufficientStake),
		errors.Is(err, domain.ErrInsufficientStakeToSlash),
		errors.Is(err, domain.ErrNotEligibleOperator),
		errors.Is(err, domain.ErrEmptyProof),
		errors.Is(err, domain.ErrProofRejected),
		errors.Is(err, domain.ErrNoRewardsToClaim):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrVerifierUnavailable),
		errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}

// countRequests records per-route request counts by status class.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status()/100*100)).Inc()
	})
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
