// Package api provides the HTTP server for StarPath: the habit, goal,
// profile and generation endpoints, the realtime event stream, health and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starpath-app/starpath/internal/app/aigen"
	"github.com/starpath-app/starpath/internal/app/events"
	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/health"
	"github.com/starpath-app/starpath/internal/logger"
	"github.com/starpath-app/starpath/internal/security"
)

// Deps are the services the server exposes. Generator, Events and Health
// may be nil; their routes then report the feature as unavailable.
type Deps struct {
	Tracker     *tracker.Tracker
	Generator   *aigen.Service
	Events      events.Hub
	Health      *health.Checker
	Tokens      *security.TokenManager
	CORSOrigins []string
	Now         func() time.Time
}

// Server is the StarPath HTTP API server.
type Server struct {
	tracker        *tracker.Tracker
	gen            *aigen.Service
	hub            events.Hub
	health         *health.Checker
	tokens         *security.TokenManager
	origins        []string
	now            func() time.Time
	metricsEnabled bool
	keepAlive      time.Duration
}

// NewServer creates a new API server.
func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{
		tracker:   d.Tracker,
		gen:       d.Generator,
		hub:       d.Events,
		health:    d.Health,
		tokens:    d.Tokens,
		origins:   d.CORSOrigins,
		now:       d.Now,
		keepAlive: 25 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(corsMiddleware(s.origins))

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Event stream: long-lived, no request timeout, token also accepted as
	// ?access_token= because EventSource cannot set headers.
	r.With(s.requireAuth(true)).Get("/api/events", s.handleEvents)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(2 * time.Minute))
		r.Use(s.requireAuth(false))

		r.Route("/habits", func(r chi.Router) {
			r.Get("/", s.handleListHabits)
			r.Post("/", s.handleCreateHabit)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetHabit)
				r.Patch("/", s.handleUpdateHabit)
				r.Delete("/", s.handleDeleteHabit)
				r.Get("/completions", s.handleListCompletions)
				r.Post("/completions/{day}", s.handleComplete)
				r.Delete("/completions/{day}", s.handleUncomplete)
				r.Post("/toggle", s.handleToggleHabit)
			})
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGoal)
				r.Patch("/", s.handleUpdateGoal)
				r.Delete("/", s.handleDeleteGoal)
				r.Post("/archive", s.handleArchiveGoal)
				r.Post("/tasks", s.handleAddTask)
				r.Patch("/tasks/{taskID}", s.handleUpdateTask)
				r.Delete("/tasks/{taskID}", s.handleDeleteTask)
				r.Post("/tasks/{taskID}/toggle", s.handleToggleTask)
			})
		})

		r.Get("/profile", s.handleProfile)
		r.Get("/profile/verify", s.handleVerify)
		r.Post("/profile/repair", s.handleRepair)
		r.Get("/achievements", s.handleAchievements)

		r.Post("/ai/generate", s.handleGenerate)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    kind,
		},
	})
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrWrongGoal):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrTaskCycle), errors.Is(err, domain.ErrTaskTooDeep),
		errors.Is(err, domain.ErrGoalArchived):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream"
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes err as a JSON error. Internal details never reach the client;
// authorization failures are always logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()

	var rle *aigen.RateLimitError
	if errors.As(err, &rle) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		logger.Warn("authorization failure", "path", r.URL.Path, "err", err)
	case http.StatusServiceUnavailable:
		logger.Warn("upstream unavailable", "path", r.URL.Path, "err", err)
		msg = "temporarily unavailable, try again later"
	case http.StatusInternalServerError:
		logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		msg = "internal error"
	}
	writeError(w, status, kind, msg)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// corsMiddleware adds CORS headers. "*" allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "took", time.Since(start))
	})
}
