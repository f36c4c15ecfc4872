package celery

import (
	"context"
	"errors"
	"fmt"

	"taskprogress/internal/progress"

	"github.com/gocelery/gocelery"
)

// gocelery only signals a missing result key through this message.
const resultNotAvailable = "result not available"

// Result is a progress.Result over a Celery result record.
type Result struct {
	id   string
	msg  *gocelery.ResultMessage
	info any
}

// Lookup reads the result record of taskID. A task without a record is
// reported the way Celery does: PENDING with nothing stored.
func Lookup(backend gocelery.CeleryBackend, taskID string) (*Result, error) {
	msg, err := backend.GetResult(taskID)
	if err != nil {
		if err.Error() == resultNotAvailable {
			return &Result{
				id:  taskID,
				msg: &gocelery.ResultMessage{ID: taskID, Status: string(progress.StatePending)},
			}, nil
		}
		return nil, fmt.Errorf("%w: get result of task %s: %v", ErrBackendUnavailable, taskID, err)
	}
	return NewResult(taskID, msg), nil
}

// NewResult wraps a result message already fetched from the backend.
func NewResult(taskID string, msg *gocelery.ResultMessage) *Result {
	r := &Result{id: taskID, msg: msg, info: msg.Result}
	if taskErr, ok := decodeTaskError(msg.Result); ok {
		r.info = taskErr
	}
	return r
}

func (r *Result) ID() string { return r.id }

func (r *Result) State() progress.State { return progress.State(r.msg.Status) }

// Info is the stored result: a *TaskError for exceptions, otherwise the decoded JSON.
func (r *Result) Info() any { return r.info }

func (r *Result) Successful() bool { return r.State() == progress.StateSuccess }

func (r *Result) Traceback() string {
	if tb, ok := r.msg.Traceback.(string); ok {
		return tb
	}
	return ""
}

// Get returns the stored value of a successful task or the exception it ended with.
func (r *Result) Get(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var taskErr *TaskError
	if err, ok := r.info.(error); ok && errors.As(err, &taskErr) {
		return nil, taskErr
	}
	if !r.Successful() {
		return nil, fmt.Errorf("task %s is in state %s", r.id, r.msg.Status)
	}
	return r.msg.Result, nil
}
