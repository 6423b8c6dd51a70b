package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/encoder"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"github.com/sirosfoundation/go-soap/pkg/serialization"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sirosfoundation/go-soap/pkg/dispatch"

// InstanceProvider returns the service instance for one request.
type InstanceProvider func(ctx context.Context) (any, error)

type namespaceDecl struct {
	prefix string
	uri    string
}

// Endpoint serves one service on one path. It is immutable once created
// and safe for concurrent use.
type Endpoint struct {
	path            string
	caseInsensitive bool
	pathTuner       PathTuner

	service    *contract.ServiceDescription
	operations []*contract.OperationDescription
	instance   InstanceProvider
	encoders   []*encoder.Encoder
	convention serialization.Convention
	resolver   serialization.Resolver
	codec      *serialization.Codec
	namespaces []namespaceDecl

	filters          []MessageFilter
	inspectors       []inspector
	modelFilters     map[reflect.Type][]ModelBindingFilter
	actionFilters    []ActionFilter
	tuners           []OperationTuner
	faultTransformer FaultTransformer
	processors       []MessageProcessor

	faultStatus int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// EndpointOption configures an Endpoint
type EndpointOption func(*Endpoint) error

// WithEncoders sets the encoders offered on the path. A request is read by
// the first encoder accepting its Content-Type. Without this option the
// endpoint speaks SOAP 1.1 in UTF-8.
func WithEncoders(encoders ...*encoder.Encoder) EndpointOption {
	return func(e *Endpoint) error {
		e.encoders = append(e.encoders, encoders...)
		return nil
	}
}

// WithConvention selects the serialization convention, DataContract by
// default.
func WithConvention(c serialization.Convention) EndpointOption {
	return func(e *Endpoint) error {
		e.convention = c
		return nil
	}
}

// WithSerializerResolver installs custom per-type serializers.
func WithSerializerResolver(r serialization.Resolver) EndpointOption {
	return func(e *Endpoint) error {
		e.resolver = r
		return nil
	}
}

// WithCaseInsensitivePath matches the request path ignoring case.
func WithCaseInsensitivePath() EndpointOption {
	return func(e *Endpoint) error {
		e.caseInsensitive = true
		return nil
	}
}

// WithPathTuner accepts request paths approved by t.
func WithPathTuner(t PathTuner) EndpointOption {
	return func(e *Endpoint) error {
		e.pathTuner = t
		return nil
	}
}

// WithNamespace declares an additional namespace on every reply envelope.
func WithNamespace(prefix, uri string) EndpointOption {
	return func(e *Endpoint) error {
		e.namespaces = append(e.namespaces, namespaceDecl{prefix: prefix, uri: uri})
		return nil
	}
}

// WithInstanceProvider creates the service instance per request instead of
// sharing the instance given to NewEndpoint.
func WithInstanceProvider(p InstanceProvider) EndpointOption {
	return func(e *Endpoint) error {
		e.instance = p
		return nil
	}
}

// WithMessageFilter adds a message filter.
func WithMessageFilter(f MessageFilter) EndpointOption {
	return func(e *Endpoint) error {
		e.filters = append(e.filters, f)
		return nil
	}
}

// WithMessageInspector adds a message inspector.
func WithMessageInspector(i MessageInspector) EndpointOption {
	return func(e *Endpoint) error {
		e.inspectors = append(e.inspectors, inspectorV1(i))
		return nil
	}
}

// WithMessageInspector2 adds an inspector that receives the service
// description.
func WithMessageInspector2(i MessageInspector2) EndpointOption {
	return func(e *Endpoint) error {
		e.inspectors = append(e.inspectors, inspectorV2(i))
		return nil
	}
}

// WithMessageInspector3 adds an inspector that receives the service
// description and the HTTP request.
func WithMessageInspector3(i MessageInspector3) EndpointOption {
	return func(e *Endpoint) error {
		e.inspectors = append(e.inspectors, inspectorV3(i))
		return nil
	}
}

// WithModelBindingFilter adds a filter for arguments of f.ModelType().
func WithModelBindingFilter(f ModelBindingFilter) EndpointOption {
	return func(e *Endpoint) error {
		t := f.ModelType()
		if t == nil {
			return fmt.Errorf("model binding filter %T has no model type", f)
		}
		e.modelFilters[t] = append(e.modelFilters[t], f)
		return nil
	}
}

// WithActionFilter adds an action filter. Filters run in registration
// order before invocation and in reverse order after it.
func WithActionFilter(f ActionFilter) EndpointOption {
	return func(e *Endpoint) error {
		e.actionFilters = append(e.actionFilters, f)
		return nil
	}
}

// WithOperationTuner adds an operation tuner.
func WithOperationTuner(t OperationTuner) EndpointOption {
	return func(e *Endpoint) error {
		e.tuners = append(e.tuners, t)
		return nil
	}
}

// WithFaultTransformer replaces the default fault construction.
func WithFaultTransformer(t FaultTransformer) EndpointOption {
	return func(e *Endpoint) error {
		e.faultTransformer = t
		return nil
	}
}

// WithMessageProcessor adds a message processor. The first processor
// added is the outermost.
func WithMessageProcessor(p MessageProcessor) EndpointOption {
	return func(e *Endpoint) error {
		e.processors = append(e.processors, p)
		return nil
	}
}

// WithFaultStatus sets the HTTP status of fault replies, 500 by default.
// Authorization faults always use 401 or 403.
func WithFaultStatus(status int) EndpointOption {
	return func(e *Endpoint) error {
		if status < 200 || status > 599 {
			return fmt.Errorf("invalid fault status %d", status)
		}
		e.faultStatus = status
		return nil
	}
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(logger *slog.Logger) EndpointOption {
	return func(e *Endpoint) error {
		e.logger = logger
		return nil
	}
}

// WithTracerProvider sets the tracer provider, the global one otherwise.
func WithTracerProvider(tp trace.TracerProvider) EndpointOption {
	return func(e *Endpoint) error {
		e.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// NewEndpoint creates an endpoint serving service on path. instance is
// passed to every invoker unless WithInstanceProvider is given.
func NewEndpoint(path string, service *contract.ServiceDescription, instance any, opts ...EndpointOption) (*Endpoint, error) {
	if path == "" {
		return nil, fmt.Errorf("endpoint: %w", contract.ErrEmptyName)
	}
	if service == nil {
		return nil, fmt.Errorf("endpoint %s: no service", path)
	}

	e := &Endpoint{
		path:         path,
		service:      service,
		operations:   service.Operations(),
		instance:     func(context.Context) (any, error) { return instance, nil },
		convention:   serialization.DataContract,
		modelFilters: make(map[reflect.Type][]ModelBindingFilter),
		faultStatus:  http.StatusInternalServerError,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", path, err)
		}
	}

	if len(e.encoders) == 0 {
		enc, err := encoder.New(message.Soap11)
		if err != nil {
			return nil, err
		}
		e.encoders = []*encoder.Encoder{enc}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With(slog.String("endpoint", path), slog.String("service", service.Name))
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	codecOpts := []serialization.Option{serialization.WithKnownTypes(service.KnownTypes()...)}
	if e.resolver != nil {
		codecOpts = append(codecOpts, serialization.WithResolver(e.resolver))
	}
	e.codec = serialization.New(e.convention, codecOpts...)
	return e, nil
}

// Path returns the registered path.
func (e *Endpoint) Path() string { return e.path }

// Service returns the service description.
func (e *Endpoint) Service() *contract.ServiceDescription { return e.service }

// Encoders returns the encoders offered on the path.
func (e *Endpoint) Encoders() []*encoder.Encoder { return e.encoders }

// MatchPath reports whether the endpoint serves requestPath.
func (e *Endpoint) MatchPath(requestPath string) bool {
	switch {
	case requestPath == e.path:
		return true
	case e.caseInsensitive && equalFoldPath(requestPath, e.path):
		return true
	case e.pathTuner != nil:
		return e.pathTuner.MatchPath(requestPath, e.path)
	}
	return false
}

// encoderFor returns the first encoder accepting contentType.
func (e *Endpoint) encoderFor(contentType string) (*encoder.Encoder, bool) {
	for _, enc := range e.encoders {
		if enc.IsContentTypeSupported(contentType) {
			return enc, true
		}
	}
	return nil, false
}
