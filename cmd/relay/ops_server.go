package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catchup-relay/internal/config"
	hhttp "catchup-relay/internal/handler/http"
	"catchup-relay/internal/handler/http/requestid"
	"catchup-relay/internal/handler/http/respond"
	"catchup-relay/internal/observability/tracing"
	"catchup-relay/internal/repository"
	"catchup-relay/internal/resilience/circuitbreaker"
	"catchup-relay/internal/resilience/recovery"
)

// opsServer bundles the dependencies of the worker's operational HTTP
// surface: Prometheus metrics, health snapshots, and mutating admin
// endpoints.
type opsServer struct {
	logger         *slog.Logger
	breakers       *circuitbreaker.Registry
	recovery       *recovery.Manager
	drafts         repository.DraftRepository
	security       *config.SecuritySection
	breakerMetrics *circuitbreaker.PrometheusMetrics
	drainBatch     int
	jwtSecret      string
}

// breakerHealthResponse is the GET /health/breakers body.
type breakerHealthResponse struct {
	Healthy  bool                          `json:"healthy"`
	Breakers []circuitbreaker.HealthStatus `json:"breakers"`
}

// startOpsServer starts the ops HTTP server on METRICS_PORT. It runs in a
// background goroutine and shuts down gracefully when ctx is canceled.
//
// Every route requires an admin bearer token unless the topology's
// security.public_endpoints lists it. /metrics serves the default registry
// (business and worker metrics) merged with the breaker registry.
func startOpsServer(ctx context.Context, logger *slog.Logger, s *opsServer) {
	s.jwtSecret = os.Getenv(s.security.GetJWTSecretEnv())
	if s.jwtSecret == "" {
		logger.Warn("admin endpoints disabled, signing secret env not set",
			slog.String("env", s.security.GetJWTSecretEnv()))
	}

	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		s.breakerMetrics.Registry(),
	}

	mux := http.NewServeMux()
	mux.Handle("GET    /metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET    /healthz", s.handleHealthz)
	mux.HandleFunc("GET    /health/breakers", s.handleBreakerHealth)
	mux.HandleFunc("GET    /health/recovery", s.handleRecoveryHealth)
	mux.HandleFunc("GET    /admin/drafts", s.handleDraftList)
	mux.HandleFunc("POST   /admin/breakers/reset", s.handleBreakerResetAll)
	mux.HandleFunc("POST   /admin/breakers/{name}/reset", s.handleBreakerReset)
	mux.HandleFunc("POST   /admin/queue/drain", s.handleQueueDrain)

	// Apply in reverse order (innermost to outermost). Auth sits innermost
	// so rejected requests still show up in logs and metrics; tracing wraps
	// logging so the trace ID is in context when the request log is written.
	handler := s.requireAdmin(mux)
	handler = hhttp.Metrics(handler)
	handler = hhttp.Logging(logger)(handler)
	handler = hhttp.Recover(logger)(handler)
	handler = tracing.Middleware(handler)
	handler = requestid.Middleware(handler)

	port := getOpsPort()
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in background goroutine
	go func() {
		logger.Info("ops server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", slog.Any("error", err))
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("ops server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("ops server stopped")
		}
	}()
}

// getOpsPort retrieves the ops server port from METRICS_PORT.
// Defaults to 9090 if not set or invalid.
func getOpsPort() int {
	portStr := os.Getenv("METRICS_PORT")
	if portStr == "" {
		return 9090
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 9090
	}

	return port
}

// requireAdmin gates every route behind a bearer token except the endpoints
// the topology lists as public. With no signing secret configured the gated
// routes answer 503 instead of silently opening up.
func (s *opsServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.security.IsPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if s.jwtSecret == "" {
			respond.Error(w, http.StatusServiceUnavailable, errors.New("admin endpoints disabled: no signing secret configured"))
			return
		}

		if err := validateAdminToken(r.Header.Get("Authorization"), []byte(s.jwtSecret)); err != nil {
			s.logger.Warn("admin auth rejected",
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
			respond.Error(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validateAdminToken checks a bearer JWT: HS256 signature, expiry, and the
// admin role claim.
func validateAdminToken(authz string, secret []byte) error {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return errors.New("token expired")
	}
	if sub, ok := claims["sub"].(string); !ok || sub == "" {
		return errors.New("invalid sub claim")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return errors.New("admin role required")
	}
	return nil
}

// handleHealthz handles the liveness probe. Always returns 200.
func (s *opsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleBreakerHealth reports every breaker's state. Returns 503 when any
// breaker is open so the endpoint doubles as an alert target.
func (s *opsServer) handleBreakerHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.breakers.Health()

	healthy := true
	for _, st := range statuses {
		if st.State == "open" {
			healthy = false
			break
		}
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, breakerHealthResponse{Healthy: healthy, Breakers: statuses})
}

// handleRecoveryHealth reports the recovery manager snapshot: queued
// operations, degraded services, and per-service breaker state. Returns 503
// while any service is degraded.
func (s *opsServer) handleRecoveryHealth(w http.ResponseWriter, r *http.Request) {
	health := s.recovery.Health()

	code := http.StatusOK
	if len(health.DegradedServices) > 0 {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, health)
}

// handleBreakerReset forces one breaker back to closed.
func (s *opsServer) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.breakers.Reset(name) {
		respond.Error(w, http.StatusNotFound, fmt.Errorf("unknown breaker: %s", name))
		return
	}

	s.logger.Info("breaker reset by admin", slog.String("breaker", name))
	respond.JSON(w, http.StatusOK, map[string]string{"breaker": name, "state": "closed"})
}

// handleBreakerResetAll forces every breaker back to closed.
func (s *opsServer) handleBreakerResetAll(w http.ResponseWriter, r *http.Request) {
	count := len(s.breakers.Names())
	s.breakers.ResetAll()

	s.logger.Info("all breakers reset by admin", slog.Int("count", count))
	respond.JSON(w, http.StatusOK, map[string]int{"reset": count})
}

// handleQueueDrain replays queued publishes now instead of waiting for the
// next scheduled drain. The optional max query parameter caps the batch.
func (s *opsServer) handleQueueDrain(w http.ResponseWriter, r *http.Request) {
	batch := s.drainBatch
	if v := r.URL.Query().Get("max"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			respond.Error(w, http.StatusBadRequest, errors.New("max must be a positive integer"))
			return
		}
		batch = parsed
	}

	result := s.recovery.RetryQueued(r.Context(), batch)

	s.logger.Info("retry queue drained by admin",
		slog.Int("processed", result.Processed),
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Int("remaining", result.Remaining))
	respond.JSON(w, http.StatusOK, result)
}

// draftSummary is the admin-facing projection of a parked draft.
type draftSummary struct {
	ID          int64     `json:"id"`
	GUID        string    `json:"guid"`
	Channel     string    `json:"channel"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Body        string    `json:"body"`
	FailureKind string    `json:"failure_kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// handleDraftList returns the most recently parked drafts for operator
// review. The optional limit query parameter defaults to 50, capped at 200.
func (s *opsServer) handleDraftList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 200 {
			respond.Error(w, http.StatusBadRequest, errors.New("limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}

	drafts, err := s.drafts.ListRecent(r.Context(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]draftSummary, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, draftSummary{
			ID:          d.ID,
			GUID:        d.GUID,
			Channel:     d.Channel,
			Title:       d.Title,
			Link:        d.Link,
			Body:        d.Body,
			FailureKind: d.FailureKind,
			CreatedAt:   d.CreatedAt,
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"drafts": out, "count": len(out)})
}
