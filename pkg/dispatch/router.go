package dispatch

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/sirosfoundation/go-soap/pkg/contract"
)

func equalFoldPath(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Router dispatches requests to the endpoint registered for their path.
// Endpoints are usually registered at startup; lookups are safe for
// concurrent use with registration.
type Router struct {
	mu        sync.RWMutex
	endpoints []*Endpoint
	logger    *slog.Logger
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithRouterLogger sets the logger used for unrouted requests.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates an empty router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Register adds an endpoint. Registering a path twice is an error.
func (rt *Router) Register(e *Endpoint) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, existing := range rt.endpoints {
		if existing.path == e.path {
			return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, e.path)
		}
	}
	rt.endpoints = append(rt.endpoints, e)
	rt.logger.Debug("endpoint registered",
		slog.String("path", e.path),
		slog.String("service", e.service.Name),
		slog.Int("encoders", len(e.encoders)))
	return nil
}

// Handle creates an endpoint and registers it.
func (rt *Router) Handle(path string, service *contract.ServiceDescription, instance any, opts ...EndpointOption) (*Endpoint, error) {
	e, err := NewEndpoint(path, service, instance, opts...)
	if err != nil {
		return nil, err
	}
	if err := rt.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Endpoints returns the registered endpoints in registration order.
func (rt *Router) Endpoints() []*Endpoint {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return append([]*Endpoint(nil), rt.endpoints...)
}

// Lookup returns the endpoint serving path. An exact match wins over a
// case-insensitive one, which wins over a path tuner.
func (rt *Router) Lookup(path string) (*Endpoint, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for _, e := range rt.endpoints {
		if e.path == path {
			return e, true
		}
	}
	for _, e := range rt.endpoints {
		if e.caseInsensitive && equalFoldPath(path, e.path) {
			return e, true
		}
	}
	for _, e := range rt.endpoints {
		if e.MatchPath(path) {
			return e, true
		}
	}
	return nil, false
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e, ok := rt.Lookup(r.URL.Path)
	if !ok {
		rt.logger.InfoContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", http.StatusNotFound))
		http.Error(w, fmt.Sprintf("%s: %s", ErrEndpointNotFound, r.URL.Path), http.StatusNotFound)
		return
	}
	e.ServeHTTP(w, r)
}
