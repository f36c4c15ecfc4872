package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownResultReadyFollowsState(t *testing.T) {
	for state, ready := range map[State]bool{
		StatePending:  false,
		StateStarted:  false,
		StateProgress: false,
		StateRetry:    false,
		StateIgnored:  false,
		StateSuccess:  true,
		StateFailure:  true,
		StateRevoked:  true,
	} {
		// A value is present in every case; only the state decides.
		res := NewKnownResult("id", "value", state, "")
		assert.Equal(t, ready, res.Ready(), "state %s", state)
	}
	assert.False(t, NewKnownResult("id", nil, StatePending, "").Ready())
	assert.True(t, NewKnownResult("id", nil, StateSuccess, "").Ready())
}

func TestKnownResultGet(t *testing.T) {
	value, err := NewKnownResult("id", 42, StateSuccess, "").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	boom := errors.New("boom")
	_, err = NewKnownResult("id", boom, StateFailure, "").Get(context.Background())
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewKnownResult("id", 42, StateSuccess, "").Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKnownResultGeneratesID(t *testing.T) {
	res := NewKnownResult("", nil, StatePending, "")
	_, err := uuid.Parse(res.ID())
	assert.NoError(t, err)
	assert.Equal(t, "given", NewKnownResult("given", nil, StatePending, "").ID())
}

func TestKnownResultCloseNeverFails(t *testing.T) {
	for _, state := range []State{StatePending, StateProgress, StateFailure, State("ODD")} {
		assert.NoError(t, NewKnownResult("id", nil, state, "").Close())
	}
}
