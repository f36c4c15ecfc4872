package celery

import (
	"context"
	"fmt"

	"taskprogress/internal/progress"

	"github.com/gocelery/gocelery"
)

// StateWriter stores state updates for one task in the Celery result format,
// so Celery clients and this module's Reader both understand them.
type StateWriter struct {
	backend gocelery.CeleryBackend
	taskID  string
}

func NewStateWriter(backend gocelery.CeleryBackend, taskID string) *StateWriter {
	return &StateWriter{backend: backend, taskID: taskID}
}

func (w *StateWriter) UpdateState(ctx context.Context, state progress.State, meta any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &gocelery.ResultMessage{
		ID:       w.taskID,
		Status:   string(state),
		Result:   meta,
		Children: []interface{}{},
	}
	if err := w.backend.SetResult(w.taskID, msg); err != nil {
		return fmt.Errorf("%w: set %s state of task %s: %v", ErrBackendUnavailable, state, w.taskID, err)
	}
	return nil
}
