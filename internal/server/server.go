// Package server hosts SOAP services over HTTP.
//
// The server exposes:
//
// # SOAP Endpoints
//
// POST {path} for every configured endpoint. Requests are dispatched by
// a [dispatch.Router] to the registered service named by the endpoint.
// Endpoints configured with auth require an OAuth2 bearer token; those
// with a duplicate window reject repeated WS-Addressing MessageIDs.
//
// # Health & Metrics
//
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe, 503 while shutting down
//   - GET /metrics - Prometheus metrics (if enabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirosfoundation/go-soap/internal/auth"
	"github.com/sirosfoundation/go-soap/internal/config"
	"github.com/sirosfoundation/go-soap/internal/ratelimit"
	"github.com/sirosfoundation/go-soap/internal/telemetry"
	"github.com/sirosfoundation/go-soap/pkg/compression"
	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/dispatch"
	"github.com/sirosfoundation/go-soap/pkg/encoder"
	"github.com/sirosfoundation/go-soap/pkg/reliability"
	"github.com/sirosfoundation/go-soap/pkg/serialization"
	"github.com/sirosfoundation/go-soap/pkg/transport"
)

// ErrUnknownService is returned when an endpoint names a service that is
// not registered.
var ErrUnknownService = errors.New("unknown service")

// Service is a service implementation available to endpoints.
type Service struct {
	Description *contract.ServiceDescription
	// Instance serves every request unless Provider is set
	Instance any
	// Provider creates an instance per request
	Provider dispatch.InstanceProvider
	// Scopes lists the token scope required per operation name on
	// endpoints with auth
	Scopes map[string]string
}

// Server is the SOAP HTTP server
type Server struct {
	config        *config.Config
	logger        *slog.Logger
	httpSrv       *http.Server
	router        *dispatch.Router
	authenticator *auth.Authenticator
	metrics       *telemetry.Metrics
	gatherer      prometheus.Gatherer
	detectors     []*reliability.Detector
	draining      atomic.Bool
}

// Option configures a Server
type Option func(*Server)

// WithRegistry records metrics in reg and serves them from it instead of
// the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = telemetry.NewMetrics(reg)
		s.gatherer = reg
	}
}

// New creates a server hosting services on the endpoints of cfg.
func New(cfg *config.Config, services map[string]Service, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:   cfg,
		logger:   logger,
		router:   dispatch.NewRouter(dispatch.WithRouterLogger(logger)),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = telemetry.NewMetrics(nil)
	}
	if cfg.Metrics.Metrics.Enabled {
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	// Initialize authenticator for OAuth2/JWT
	s.authenticator = auth.NewAuthenticator(&cfg.OAuth2, logger)
	if s.authenticator.IsEnabled() {
		logger.Info("OAuth2 authentication enabled", "issuer", cfg.OAuth2.Issuer)
	}

	limiter := ratelimit.NewProcessor(cfg.RateLimit)
	for _, ep := range cfg.Endpoints {
		svc, ok := services[ep.Service]
		if !ok {
			return nil, fmt.Errorf("endpoint %s: %w %q", ep.Path, ErrUnknownService, ep.Service)
		}
		epOpts, err := s.endpointOptions(ep, svc, limiter)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", ep.Path, err)
		}
		if _, err := s.router.Handle(ep.Path, svc.Description, svc.Instance, epOpts...); err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", ep.Path, err)
		}
		logger.Info("registered endpoint",
			"path", ep.Path,
			"service", svc.Description.Name,
			"auth", ep.Auth)
	}

	// Set up HTTP routes
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if tlsCfg := cfg.Server.TLS; tlsCfg.Enabled {
		minVersion, err := transport.ParseTLSVersion(tlsCfg.MinVersion)
		if err != nil {
			return nil, err
		}
		s.httpSrv.TLSConfig, err = transport.NewServerTLSConfig(transport.TLSConfig{
			MinVersion:   minVersion,
			ClientCAFile: tlsCfg.ClientCAFile,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring TLS: %w", err)
		}
	}

	return s, nil
}

func (s *Server) endpointOptions(ep config.EndpointConfig, svc Service, limiter *ratelimit.Processor) ([]dispatch.EndpointOption, error) {
	convention, err := serialization.ParseConvention(ep.Convention)
	if err != nil {
		return nil, err
	}

	encoders := make([]*encoder.Encoder, 0, len(ep.Encoders))
	for _, ec := range ep.Encoders {
		version, err := ec.MessageVersion()
		if err != nil {
			return nil, err
		}
		enc, err := encoder.New(version, ec.Options()...)
		if err != nil {
			return nil, err
		}
		encoders = append(encoders, enc)
	}

	name := svc.Description.Name
	opts := []dispatch.EndpointOption{
		dispatch.WithEncoders(encoders...),
		dispatch.WithConvention(convention),
		dispatch.WithLogger(s.logger.With(slog.String("service", name))),
		dispatch.WithMessageProcessor(s.metrics.Processor(name)),
		dispatch.WithActionFilter(s.metrics.Filter(name)),
	}
	if ep.FaultStatus != 0 {
		opts = append(opts, dispatch.WithFaultStatus(ep.FaultStatus))
	}
	if limiter != nil {
		opts = append(opts, dispatch.WithMessageProcessor(limiter))
	}
	if ep.DuplicateWindow > 0 {
		d := reliability.NewDetector(ep.DuplicateWindow)
		s.detectors = append(s.detectors, d)
		opts = append(opts, dispatch.WithMessageProcessor(d.Processor()))
	}
	if ep.CaseInsensitive {
		opts = append(opts, dispatch.WithCaseInsensitivePath())
	}
	if ep.TrailingPath {
		opts = append(opts, dispatch.WithPathTuner(dispatch.TrailingPathTuner{IgnoreCase: ep.CaseInsensitive}))
	}
	for _, prefix := range slices.Sorted(maps.Keys(ep.Namespaces)) {
		opts = append(opts, dispatch.WithNamespace(prefix, ep.Namespaces[prefix]))
	}
	if svc.Provider != nil {
		opts = append(opts, dispatch.WithInstanceProvider(svc.Provider))
	}
	if ep.Auth {
		filter := auth.NewFilter(s.authenticator)
		for op, scope := range svc.Scopes {
			filter.RequireScope(op, scope)
		}
		opts = append(opts, dispatch.WithActionFilter(filter))
	}
	return opts, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Router returns the SOAP router
func (s *Server) Router() *dispatch.Router {
	return s.router
}

// Start begins listening on the configured port
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.httpSrv.Addr, "tls", s.config.Server.TLS.Enabled)
	var err error
	if s.config.Server.TLS.Enabled {
		err = s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	err := s.httpSrv.Shutdown(ctx)
	for _, d := range s.detectors {
		d.Close()
	}
	return err
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	if s.config.Metrics.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	var soap http.Handler = s.router
	if s.config.Server.Gzip {
		soap = compression.NewCompressor().Middleware(soap)
	}
	mux.Handle("/", soap)
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		s.jsonError(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	paths := make([]string, 0, len(s.router.Endpoints()))
	for _, e := range s.router.Endpoints() {
		paths = append(paths, e.Path())
	}
	s.jsonResponse(w, map[string]any{"status": "ready", "endpoints": paths}, http.StatusOK)
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("writing response failed", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}
