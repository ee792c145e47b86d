// Package http implements the REST API for the ISHEBOT insight hub.
// It serves the teacher dashboard: roster listing, per-student profiles,
// aggregated class analytics, pedagogical insights and the admin flows.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ishebot/insight-hub/config"
	"github.com/ishebot/insight-hub/internal/application/command"
	"github.com/ishebot/insight-hub/internal/application/query"
	"github.com/ishebot/insight-hub/internal/infrastructure/metrics"
	"github.com/ishebot/insight-hub/internal/interface/http/handlers"
	"github.com/ishebot/insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host and Port form the bind address.
	Host string
	Port int

	// ReadTimeout bounds reading the full request; WriteTimeout bounds
	// writing the response and also sets the handler context deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// IdleTimeout - how long keep-alive connections may sit idle.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// EnableCORS - enable CORS headers. The dashboard is a separate
	// static frontend, so CORS is on by default.
	EnableCORS bool

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// EnableMetrics - enable the Prometheus metrics endpoint.
	EnableMetrics bool

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// APIKeyHeader - header name for admin API key authentication.
	APIKeyHeader string

	// AdminKeyHashes - bcrypt hashes of valid admin API keys. Plaintext
	// keys never appear in configuration.
	AdminKeyHashes []string

	// MaxImportBytes - request body limit for the import and restore
	// endpoints.
	MaxImportBytes int64
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20, // 1 MB
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		EnableMetrics:      true,
		RateLimitPerMinute: 120,
		APIKeyHeader:       "X-API-Key",
		MaxImportBytes:     10 << 20, // 10 MB
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// importLimit returns the effective body limit for admin write endpoints.
func (s *Server) importLimit() int64 {
	if s.config.MaxImportBytes > 0 {
		return s.config.MaxImportBytes
	}
	return 10 << 20
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains everything the HTTP handlers call into.
type Dependencies struct {
	// Query Handlers (CQRS Read Side)
	ListStudentsHandler      *query.ListStudentsHandler
	GetStudentProfileHandler *query.GetStudentProfileHandler
	GetClassAnalysisHandler  *query.GetClassAnalysisHandler
	GetClassInsightsHandler  *query.GetClassInsightsHandler
	GetDashboardStatsHandler *query.GetDashboardStatsHandler

	// Command Handlers (CQRS Write Side, admin only)
	ImportStudentsHandler  *command.ImportStudentsHandler
	RunAnalysisHandler     *command.RunAnalysisHandler
	DeleteStudentsHandler  *command.DeleteStudentsHandler
	BackupStudentsHandler  *command.BackupStudentsHandler
	RestoreStudentsHandler *command.RestoreStudentsHandler

	// Features gates optional surfaces at runtime. Nil means every
	// surface is live.
	Features *config.FeatureFlags

	// Logger
	Logger *logger.Logger

	// Metrics exposes the Prometheus registry; nil disables /metrics.
	Metrics *metrics.Metrics

	// Health Check Dependencies
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the dashboard API.
type Server struct {
	config      Config
	deps        Dependencies
	logger      *logger.Logger
	router      *http.ServeMux
	httpServer  *http.Server
	rateLimiter *rateLimiter
	adminAuth   *handlers.APIKeyAuth

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer wires routes and middleware; it does not listen until Start.
func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		config:    config,
		deps:      deps,
		logger:    log,
		router:    http.NewServeMux(),
		adminAuth: handlers.NewAPIKeyAuth(config.APIKeyHeader, config.AdminKeyHashes),
	}
	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth) // Kubernetes alias
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /", s.handleRoot)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Dashboard Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/stats", s.handleGetStats)
	s.router.HandleFunc("GET /api/v1/students", s.handleListStudents)
	s.router.HandleFunc("GET /api/v1/students/{code}", s.handleGetStudent)
	s.router.HandleFunc("GET /api/v1/analysis", s.handleGetAnalysis)
	s.router.HandleFunc("GET /api/v1/analysis/{class}", s.handleGetClassAnalysis)
	s.router.HandleFunc("GET /api/v1/insights", s.handleGetInsights)
	s.router.HandleFunc("GET /api/v1/insights/{class}", s.handleGetClassInsights)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Admin Endpoints (API key required)
	// ─────────────────────────────────────────────────────────────────────────
	// Auth runs outermost so unauthenticated requests are rejected before
	// the body is touched. Admin responses are never cacheable.
	admin := func(h http.Handler) http.Handler {
		return handlers.ChainHandler(h,
			s.adminAuth.Middleware,
			handlers.NoCacheMiddleware,
			handlers.RequestSizeLimitMiddleware(s.importLimit()),
		)
	}
	s.router.Handle("POST /api/v1/admin/import", admin(http.HandlerFunc(s.handleImport)))
	s.router.Handle("POST /api/v1/admin/analyze", admin(http.HandlerFunc(s.handleRunAnalysis)))
	s.router.Handle("POST /api/v1/admin/delete", admin(http.HandlerFunc(s.handleDelete)))
	s.router.Handle("GET /api/v1/admin/backup", admin(http.HandlerFunc(s.handleBackup)))
	s.router.Handle("POST /api/v1/admin/restore", admin(http.HandlerFunc(s.handleRestore)))

	// Feature flag inspection and per-class pilot overrides.
	s.router.Handle("GET /api/v1/admin/features", admin(http.HandlerFunc(s.handleListFeatures)))
	s.router.Handle("POST /api/v1/admin/features/override", admin(http.HandlerFunc(s.handleSetFeatureOverride)))
	s.router.Handle("DELETE /api/v1/admin/features/override/{class}", admin(http.HandlerFunc(s.handleClearFeatureOverrides)))

	// ─────────────────────────────────────────────────────────────────────────
	// Metrics (if enabled)
	// ─────────────────────────────────────────────────────────────────────────
	if s.config.EnableMetrics && s.deps.Metrics != nil {
		s.router.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router with all middleware.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last middleware wraps first)
	h := handler

	// Security headers on every response
	h = handlers.SecurityHeadersMiddleware(h)

	// Cancel handler contexts when the response deadline passes, so
	// in-flight queries stop instead of running to completion.
	if s.config.WriteTimeout > 0 {
		h = handlers.TimeoutMiddleware(s.config.WriteTimeout)(h)
	}

	// Request IDs must exist before the access log reads them.
	h = s.requestIDMiddleware(h)
	h = s.loggingMiddleware(h)

	// Recovery sits outside logging so a panic still produces a log line.
	h = s.recoveryMiddleware(h)

	if s.config.EnableCORS {
		h = s.corsMiddleware(h)
	}
	if s.rateLimiter != nil {
		h = s.rateLimitMiddleware(h)
	}

	return h
}

// requestIDMiddleware tags each request, honouring an inbound X-Request-ID
// so the frontend can correlate its own traces.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = generateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

// loggingMiddleware logs every request and feeds the HTTP metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routePattern(r)
		if m := s.deps.Metrics; m != nil {
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Int64("bytes", rec.written),
			logger.Int64("duration_ms", elapsed.Milliseconds()),
			logger.String("ip", getClientIP(r)),
			logger.String("request_id", getRequestID(r.Context())),
		)
	})
}

// recoveryMiddleware converts handler panics into a 500 so one bad request
// cannot take the process down.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			s.logger.Error("panic recovered",
				logger.Any("error", rec),
				logger.String("path", r.URL.Path),
				logger.String("request_id", getRequestID(r.Context())),
				logger.String("stack", string(debug.Stack())),
			)
			writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflights and reflects allowed origins. The
// dashboard frontend is served from a different host than the API.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// rateLimitMiddleware rejects clients that exceeded their per-IP budget.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// ErrServerRunning is returned by Start when the server is already up.
var ErrServerRunning = errors.New("http server already running")

// Start listens and serves until Shutdown. It blocks; a clean shutdown
// returns nil.
func (s *Server) Start() error {
	if err := s.markRunning(); err != nil {
		return err
	}

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) markRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrServerRunning
	}
	s.running = true
	s.startedAt = time.Now()
	return nil
}

// StartAsync runs Start in a goroutine and reports its result on the
// returned channel, which closes when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests and stops the listener. Calling it
// on a stopped server is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning {
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime reports how long the server has been running, zero when stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the host:port the server binds.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope every API response uses. The dashboard
// frontend branches on Success before touching Data.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta carries timestamps and pagination for list endpoints.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
	Page       int       `json:"page,omitempty"`
	PageSize   int       `json:"page_size,omitempty"`
	HasMore    bool      `json:"has_more,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes data in the standard envelope.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, JSONResponse{
		Success: status < 400,
		Data:    data,
		Meta:    &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
	})
}

// writeJSONWithMeta writes data with caller-supplied pagination metadata.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"
	writeEnvelope(w, status, JSONResponse{
		Success:   status < 400,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes an error envelope.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, JSONResponse{
		Error: &APIError{Code: code, Message: message},
		Meta:  &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// statusRecorder captures the status code and body size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(p)
	rec.written += int64(n)
	return n, err
}

// routePattern returns the matched route pattern for metric labels, keeping
// cardinality bounded regardless of path parameters.
func routePattern(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

// getClientIP resolves the caller's address, trusting proxy headers when
// present since the API sits behind the frontend's reverse proxy.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// generateRequestID generates a unique request ID.
func generateRequestID() string {
	return uuid.NewString()
}

// getQueryParam returns the query parameter or a default when absent.
func getQueryParam(r *http.Request, key, defaultValue string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultValue
}

// getQueryParamInt returns an integer query parameter; non-numeric and
// absent values fall back to the default.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// getQueryParamBool treats "true", "1" and "yes" as true.
func getQueryParamBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// rateLimiter is a fixed-window counter per client key. Coarser than a
// sliding window but O(1) per request, which is enough to keep a single
// misbehaving dashboard tab from monopolising the API.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
}

type rateBucket struct {
	count       int
	windowStart time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}
	go rl.evictLoop()
	return rl
}

// Allow records one request for key and reports whether it fits the
// current window's budget.
func (rl *rateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[key]
	if b == nil || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &rateBucket{count: 1, windowStart: now}
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// evictLoop drops buckets whose window has long passed so the map does
// not grow with every client ever seen.
func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.window)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if b.windowStart.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
