package progress

import (
	"context"

	"github.com/google/uuid"
)

// KnownResult presents a job that already ran in-process, in any state, through
// the same Result interface as a queued job.
type KnownResult struct {
	id        string
	value     any
	state     State
	traceback string
}

// NewKnownResult wraps value, which may be a return value, an error, or progress
// metadata. An empty id is replaced with a random one.
func NewKnownResult(id string, value any, state State, traceback string) *KnownResult {
	if id == "" {
		id = uuid.NewString()
	}
	return &KnownResult{
		id:        id,
		value:     value,
		state:     state,
		traceback: traceback,
	}
}

func (k *KnownResult) ID() string { return k.id }

func (k *KnownResult) State() State { return k.state }

func (k *KnownResult) Info() any { return k.value }

func (k *KnownResult) Traceback() string { return k.traceback }

func (k *KnownResult) Successful() bool { return k.state == StateSuccess }

// Ready follows the rule used for queued jobs: the state decides, not whether a
// value is present.
func (k *KnownResult) Ready() bool { return k.state.Ready() }

// Get returns the stored value, or the stored error when the job failed.
func (k *KnownResult) Get(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := k.value.(error); ok {
		return nil, err
	}
	return k.value, nil
}

// Close releases nothing and never fails, whatever state the result is in.
func (k *KnownResult) Close() error { return nil }
