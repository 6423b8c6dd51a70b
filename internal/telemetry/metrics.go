// Package telemetry records Prometheus metrics for hosted SOAP endpoints.
//
// Two hooks feed the collectors: a message processor observing every
// exchange of an endpoint and an action filter observing each invoked
// operation.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirosfoundation/go-soap/pkg/dispatch"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

// Outcome label values
const (
	OutcomeSuccess     = "success"
	OutcomeAccepted    = "accepted"
	OutcomeFault       = "fault"
	OutcomeClientFault = "client_fault"
)

// Metrics holds the collectors shared by all endpoints of a host.
type Metrics struct {
	mu sync.Mutex

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	operationsTotal *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "soap",
			Subsystem: "server",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collectors. A nil registerer selects
// prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer:      registerer,
		requestsTotal:   newCounterVec("requests_total", "Total number of SOAP requests handled", []string{"service", "outcome"}),
		operationsTotal: newCounterVec("operations_total", "Total number of operation invocations", []string{"service", "operation", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "soap",
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "Time from decoding a request to producing its reply",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "soap",
				Subsystem: "server",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
			[]string{"service"},
		),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.operationsTotal,
		m.inFlight,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Processor returns a message processor recording the exchanges of service.
func (m *Metrics) Processor(service string) dispatch.MessageProcessor {
	return &processor{m: m, service: service}
}

// Filter returns an action filter recording the operations of service.
func (m *Metrics) Filter(service string) dispatch.ActionFilter {
	return &filter{m: m, service: service}
}

type processor struct {
	m       *Metrics
	service string
}

func (p *processor) ProcessMessage(ctx context.Context, req *message.Message, r *http.Request, next dispatch.ProcessFunc) (*message.Message, error) {
	gauge := p.m.inFlight.WithLabelValues(p.service)
	gauge.Inc()
	defer gauge.Dec()

	start := time.Now()
	reply, err := next(ctx, req, r)
	p.m.requestDuration.WithLabelValues(p.service).Observe(time.Since(start).Seconds())
	p.m.requestsTotal.WithLabelValues(p.service, replyOutcome(reply, err)).Inc()
	return reply, err
}

func replyOutcome(reply *message.Message, err error) string {
	switch {
	case err != nil:
		return errorOutcome(err)
	case reply == nil:
		return OutcomeAccepted
	case reply.IsFault():
		f, perr := message.ParseFault(reply)
		if perr == nil && f.Code == message.FaultCodeSender {
			return OutcomeClientFault
		}
		return OutcomeFault
	}
	return OutcomeSuccess
}

func errorOutcome(err error) string {
	if dispatch.IsClientFault(err) {
		return OutcomeClientFault
	}
	return OutcomeFault
}

type filter struct {
	m       *Metrics
	service string
}

func (f *filter) OnActionExecuting(context.Context, *dispatch.ActionContext) error {
	return nil
}

func (f *filter) OnActionExecuted(_ context.Context, ac *dispatch.ActionContext) {
	outcome := OutcomeSuccess
	if ac.Err != nil {
		outcome = errorOutcome(ac.Err)
	}
	f.m.operationsTotal.WithLabelValues(f.service, ac.Operation.Name, outcome).Inc()
}
