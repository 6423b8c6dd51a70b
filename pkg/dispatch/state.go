package dispatch

import (
	"context"
	"fmt"
	"log/slog"
)

// State is the stage a request has reached.
type State int

const (
	StateReceived State = iota
	StateMatched
	StateBound
	StateInvoked
	StateResponded
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "Received"
	case StateMatched:
		return "Matched"
	case StateBound:
		return "Bound"
	case StateInvoked:
		return "Invoked"
	case StateResponded:
		return "Responded"
	case StateFaulted:
		return "Faulted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateResponded || s == StateFaulted
}

// CanTransition reports whether next may follow s. Every non-terminal
// state may fault; otherwise states advance one step at a time.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFaulted {
		return true
	}
	return next == s+1
}

// requestState tracks one request through the pipeline.
type requestState struct {
	state  State
	logger *slog.Logger
}

func newRequestState(logger *slog.Logger) *requestState {
	return &requestState{state: StateReceived, logger: logger}
}

func (rs *requestState) to(ctx context.Context, next State) error {
	if !rs.state.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, rs.state, next)
	}
	rs.logger.DebugContext(ctx, "request state",
		slog.String("from", rs.state.String()),
		slog.String("to", next.String()))
	rs.state = next
	return nil
}

// fault moves to Faulted unless the request already ended.
func (rs *requestState) fault(ctx context.Context) {
	if !rs.state.Terminal() {
		_ = rs.to(ctx, StateFaulted)
	}
}
