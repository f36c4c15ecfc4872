package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"taskprogress/internal/progress"
)

// envelope is the payload stored through asynq's ResultWriter. asynq keeps a
// single opaque result per task, so the state travels with the data.
type envelope struct {
	Status progress.State  `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// resultWriter is satisfied by *asynq.ResultWriter.
type resultWriter interface {
	Write(data []byte) (n int, err error)
	TaskID() string
}

// StateWriter records job states in the result of the running asynq task.
type StateWriter struct {
	rw resultWriter
}

func NewStateWriter(rw resultWriter) *StateWriter {
	return &StateWriter{rw: rw}
}

// TaskID returns the id of the task being written to.
func (w *StateWriter) TaskID() string {
	return w.rw.TaskID()
}

func (w *StateWriter) UpdateState(ctx context.Context, state progress.State, meta any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeEnvelope(state, meta)
	if err != nil {
		return err
	}
	if _, err := w.rw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s state of task %s: %w", state, w.rw.TaskID(), err)
	}
	return nil
}

// WriteResult stores the task's return value. It should be the last write of
// a successful handler.
func (w *StateWriter) WriteResult(ctx context.Context, value any) error {
	return w.UpdateState(ctx, progress.StateSuccess, value)
}

// WriteIgnored marks a task that completed without doing its work.
func (w *StateWriter) WriteIgnored(ctx context.Context, reason string) error {
	return w.UpdateState(ctx, progress.StateIgnored, reason)
}

func encodeEnvelope(state progress.State, meta any) ([]byte, error) {
	result, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s metadata: %v", ErrInvalidResult, state, err)
	}
	return json.Marshal(envelope{Status: state, Result: result})
}

func decodeEnvelope(data []byte) (envelope, bool) {
	var env envelope
	if len(data) == 0 || json.Unmarshal(data, &env) != nil || env.Status == "" {
		return envelope{}, false
	}
	return env, true
}
