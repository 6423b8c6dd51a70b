// Package ratelimit throttles SOAP requests with token buckets.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soap/internal/config"
	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/dispatch"
	"github.com/sirosfoundation/go-soap/pkg/message"
	"golang.org/x/time/rate"
)

// SubcodeServerTooBusy is the fault subcode of throttled requests
const SubcodeServerTooBusy = "ServerTooBusy"

// globalKey is the bucket shared by all clients when buckets are not per client
const globalKey = "*"

// MapLimiter applies a token bucket per string key and periodically evicts idle entries.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*entry
	hits    uint64
	idleTTL time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a key-based limiter; returns nil if args are invalid.
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*entry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether one token can be consumed for the key at now.
func (l *MapLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}

// Len returns the number of tracked keys.
func (l *MapLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// Processor is a dispatch message processor answering requests above the
// configured rate with a Receiver fault with subcode ServerTooBusy.
type Processor struct {
	limiter   *MapLimiter
	perClient bool
	now       func() time.Time
}

// NewProcessor creates a processor from cfg. It returns nil when rate
// limiting is disabled.
func NewProcessor(cfg config.RateLimitConfig) *Processor {
	l := New(cfg.RequestsPerSecond, cfg.Burst, cfg.IdleTTL)
	if l == nil {
		return nil
	}
	return &Processor{limiter: l, perClient: cfg.PerClient, now: time.Now}
}

func (p *Processor) ProcessMessage(ctx context.Context, m *message.Message, r *http.Request, next dispatch.ProcessFunc) (*message.Message, error) {
	key := globalKey
	if p.perClient {
		key = clientKey(r)
	}
	if !p.limiter.Allow(key, p.now()) {
		return nil, &contract.FaultError{
			Code:    message.FaultCodeReceiver,
			Subcode: SubcodeServerTooBusy,
			Reason:  "The server is too busy to process the request",
		}
	}
	return next(ctx, m, r)
}

// clientKey identifies the caller by the first X-Forwarded-For entry or
// the remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
