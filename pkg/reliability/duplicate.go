package reliability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soap/pkg/contract"
	"github.com/sirosfoundation/go-soap/pkg/dispatch"
	"github.com/sirosfoundation/go-soap/pkg/message"
)

// SubcodeDuplicateMessage is the fault subcode of rejected duplicates
const SubcodeDuplicateMessage = "DuplicateMessage"

// Detector remembers received MessageIDs for a window
type Detector struct {
	mu       sync.Mutex
	received map[string]time.Time
	window   time.Duration
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewDetector creates a detector and starts its cleanup goroutine.
// Close stops it.
func NewDetector(window time.Duration) *Detector {
	d := &Detector{
		received: make(map[string]time.Time),
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	interval := min(window, time.Hour)
	if interval > 0 {
		go d.cleanupLoop(interval)
	}
	return d
}

// Mark records messageID as received. It returns false if messageID was
// already received within the window.
func (d *Detector) Mark(messageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if receivedAt, ok := d.received[messageID]; ok && now.Sub(receivedAt) < d.window {
		return false
	}
	d.received[messageID] = now
	return true
}

// IsDuplicate checks if messageID was received within the window
func (d *Detector) IsDuplicate(messageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	receivedAt, ok := d.received[messageID]
	return ok && d.now().Sub(receivedAt) < d.window
}

// Forget removes messageID
func (d *Detector) Forget(messageID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.received, messageID)
}

// Len returns the number of remembered MessageIDs
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.received)
}

// Close stops the cleanup goroutine
func (d *Detector) Close() {
	d.once.Do(func() { close(d.stop) })
}

func (d *Detector) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

// cleanup removes MessageIDs older than the window
func (d *Detector) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, receivedAt := range d.received {
		if now.Sub(receivedAt) >= d.window {
			delete(d.received, id)
		}
	}
}

// Processor returns a dispatch message processor rejecting duplicates
func (d *Detector) Processor() dispatch.MessageProcessor {
	return dispatch.MessageProcessorFunc(d.process)
}

func (d *Detector) process(ctx context.Context, m *message.Message, r *http.Request, next dispatch.ProcessFunc) (*message.Message, error) {
	id := m.MessageID()
	if id == "" {
		return next(ctx, m, r)
	}
	if !d.Mark(id) {
		return nil, &contract.FaultError{
			Code:    message.FaultCodeSender,
			Subcode: SubcodeDuplicateMessage,
			Reason:  "The message " + id + " has already been received",
		}
	}
	reply, err := next(ctx, m, r)
	if err != nil {
		d.Forget(id)
	}
	return reply, err
}
