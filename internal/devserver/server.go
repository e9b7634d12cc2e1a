// Package devserver is an in-memory implementation of the SafeKart auth API
// for local development and end-to-end tests. It serves the auth endpoints
// under /api/v1, Kubernetes-style health probes and Prometheus metrics, and
// shuts down gracefully.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/safekart/safekart/internal/contract"
	"github.com/safekart/safekart/internal/health"
	"github.com/safekart/safekart/internal/log"
	"github.com/safekart/safekart/internal/metrics"
	"github.com/safekart/safekart/internal/platform"
	"github.com/safekart/safekart/internal/telemetry"
	"github.com/safekart/safekart/internal/version"
)

// APIPrefix is the path prefix of the auth endpoints.
const APIPrefix = "/api/v1"

// Config holds server configuration.
type Config struct {
	// Address is the listen address, e.g. "127.0.0.1:3000".
	Address string

	// Secret signs access tokens. Empty means a random per-process key.
	Secret string

	// TokenTTL is the access token lifetime. Defaults to one hour.
	TokenTTL time.Duration

	// BcryptCost defaults to bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server serves the auth API.
type Server struct {
	httpServer      *http.Server
	router          *mux.Router
	probes          *health.ProbeManager
	users           *Directory
	issuer          *Issuer
	validator       *contract.Validator
	logger          *log.Logger
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
	clock           clockwork.Clock
	shutdownTimeout time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics records request counters on m and exposes gatherer at /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithContract rejects API requests that do not match the OpenAPI contract
func WithContract(v *contract.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithClock sets the clock used for token timestamps and uptime
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// New creates a server. Nothing listens until Start or Serve is called.
func New(cfg Config, opts ...Option) (*Server, error) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		logger:          log.Discard(),
		clock:           clockwork.NewRealClock(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	issuer, err := NewIssuer(cfg.Secret, cfg.TokenTTL, s.clock)
	if err != nil {
		return nil, err
	}
	s.issuer = issuer
	s.users = NewDirectory(cfg.BcryptCost, s.clock)
	s.probes = health.NewProbeManagerWithClock(version.Version, s.clock)
	s.probes.AddChecker(health.NewCheckerFunc("user-directory", func(context.Context) *health.Result {
		n := s.users.Len()
		return health.Healthy(fmt.Sprintf("%d accounts", n)).WithDetail("accounts", n)
	}))

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.instrument)

	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)
	r.HandleFunc("/health/startup", s.handleStartup).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleReadiness).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.HandlerFor(s.gatherer)).Methods(http.MethodGet)
	}

	api := r.PathPrefix(APIPrefix + "/auth").Subrouter()
	if s.validator != nil {
		api.Use(s.enforceContract)
	}
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	})
	return r
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Users returns the account directory.
func (s *Server) Users() *Directory {
	return s.users
}

// Issuer returns the token issuer.
func (s *Server) Issuer() *Issuer {
	return s.issuer
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after a graceful Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.probes.MarkInitialized()
	s.logger.Info("Dev server listening", "addr", ln.Addr().String(), "version", version.Version)
	return s.httpServer.Serve(ln)
}

// Shutdown fails readiness, stops keep-alives and drains connections for
// at most the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *Server) IsShuttingDown() bool {
	return s.probes.IsShuttingDown()
}

func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = unhealthyStatus
	}
	writeJSON(w, status, result)
}

// Liveness answers 200 even while shutting down.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probes.CheckLiveness(r.Context()), http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probes.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probes.CheckStartup(r.Context()), http.StatusServiceUnavailable)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(platform.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(platform.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		ctx := telemetry.ExtractHeaders(r.Context(), r.Header)
		ctx, span := telemetry.StartServerSpan(ctx, r.Method, route)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.RecordResponse(span, rec.status)
		s.metrics.RecordServerRequest(route, rec.status)
		s.logger.DebugContext(ctx, "Request served",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", s.clock.Since(start),
			"request_id", w.Header().Get(platform.RequestIDHeader),
		)
	})
}

// enforceContract validates API requests against the OpenAPI document
// before they reach a handler.
func (s *Server) enforceContract(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.validator.ValidateRequest(r.Context(), r)
		switch {
		case err == nil, errors.Is(err, contract.ErrNoRoute):
			next.ServeHTTP(w, r)
		case contract.IsSecurityError(err):
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
		default:
			s.logger.DebugContext(r.Context(), "Request rejected by contract", "error", err.Error())
			writeError(w, http.StatusBadRequest, CodeValidation, "Request does not match the API contract")
		}
	})
}
