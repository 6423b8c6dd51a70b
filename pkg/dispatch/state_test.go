package dispatch

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CanTransition(t *testing.T) {
	path := []State{StateReceived, StateMatched, StateBound, StateInvoked, StateResponded}
	for i := 0; i+1 < len(path); i++ {
		assert.True(t, path[i].CanTransition(path[i+1]), "%s to %s", path[i], path[i+1])
		assert.True(t, path[i].CanTransition(StateFaulted), "%s to Faulted", path[i])
	}

	assert.False(t, StateReceived.CanTransition(StateBound))
	assert.False(t, StateMatched.CanTransition(StateReceived))
	assert.False(t, StateResponded.CanTransition(StateFaulted))
	assert.False(t, StateFaulted.CanTransition(StateResponded))
	assert.False(t, StateFaulted.CanTransition(StateFaulted))

	assert.True(t, StateResponded.Terminal())
	assert.True(t, StateFaulted.Terminal())
	assert.False(t, StateInvoked.Terminal())
	assert.Equal(t, "Bound", StateBound.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestRequestState(t *testing.T) {
	ctx := context.Background()
	st := newRequestState(slog.New(slog.DiscardHandler))

	require.NoError(t, st.to(ctx, StateMatched))
	assert.ErrorIs(t, st.to(ctx, StateInvoked), ErrInvalidTransition)
	assert.Equal(t, StateMatched, st.state)

	st.fault(ctx)
	assert.Equal(t, StateFaulted, st.state)
	st.fault(ctx)
	assert.Equal(t, StateFaulted, st.state)
	assert.ErrorIs(t, st.to(ctx, StateResponded), ErrInvalidTransition)
}
