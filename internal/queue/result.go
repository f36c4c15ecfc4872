package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskprogress/internal/progress"

	"github.com/hibiken/asynq"
)

// Inspector is the part of *asynq.Inspector needed to read task state.
type Inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// Lookup fetches the current state of a task from asynq.
func Lookup(inspector Inspector, queue, taskID string) (*Result, error) {
	info, err := inspector.GetTaskInfo(queue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("%w: task %s in queue %s", ErrResultNotFound, taskID, queue)
		}
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return NewResult(info), nil
}

// Result is a progress.Result over an asynq task snapshot.
//
// asynq states map as follows: pending, scheduled and aggregating are PENDING;
// active is PROGRESS once the handler has recorded progress, STARTED before;
// retry is RETRY; archived is REVOKED for cancelled tasks and FAILURE
// otherwise; completed is whatever terminal state the handler wrote,
// SUCCESS by default.
type Result struct {
	task  *asynq.TaskInfo
	state progress.State
	info  any
	value any
}

func NewResult(task *asynq.TaskInfo) *Result {
	r := &Result{task: task}
	env, hasEnvelope := decodeEnvelope(task.Result)

	switch task.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		r.state = progress.StatePending
		r.info = task.State.String()

	case asynq.TaskStateActive:
		if hasEnvelope && env.Status == progress.StateProgress {
			r.state = progress.StateProgress
			r.info = rawOrNil(env.Result)
		} else {
			r.state = progress.StateStarted
			r.info = task.State.String()
		}

	case asynq.TaskStateRetry:
		r.state = progress.StateRetry
		r.info = orDefault(task.LastErr, task.State.String())

	case asynq.TaskStateArchived:
		if isRevoked(task.LastErr) {
			r.state = progress.StateRevoked
			r.info = "revoked"
		} else {
			r.state = progress.StateFailure
			r.info = errors.New(orDefault(task.LastErr, "task archived"))
		}

	case asynq.TaskStateCompleted:
		r.completed(env, hasEnvelope)

	default:
		r.state = progress.State(strings.ToUpper(task.State.String()))
		r.info = task.State.String()
	}
	return r
}

func (r *Result) completed(env envelope, hasEnvelope bool) {
	r.state = progress.StateSuccess
	r.info = r.task.State.String()

	switch {
	case hasEnvelope && env.Status == progress.StateIgnored:
		r.state = progress.StateIgnored
		var reason string
		if err := json.Unmarshal(env.Result, &reason); err != nil {
			reason = string(env.Result)
		}
		r.info = reason

	case hasEnvelope && env.Status == progress.StateSuccess:
		r.value = rawOrNil(env.Result)
		r.info = r.value

	case !hasEnvelope && len(r.task.Result) > 0:
		// Written by a handler that does not use StateWriter.
		if json.Valid(r.task.Result) {
			r.value = rawOrNil(r.task.Result)
		} else {
			r.value = string(r.task.Result)
		}
		r.info = r.value
	}
}

// rawOrNil drops a stored JSON null, which means nothing was returned.
func rawOrNil(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.RawMessage(data)
}

func (r *Result) ID() string { return r.task.ID }

func (r *Result) State() progress.State { return r.state }

func (r *Result) Info() any { return r.info }

func (r *Result) Successful() bool { return r.state == progress.StateSuccess }

// Traceback is asynq's last error message; asynq keeps no stack traces.
func (r *Result) Traceback() string { return r.task.LastErr }

// RetryInfo reports when asynq will process the task again.
func (r *Result) RetryInfo() (progress.RetryInfo, bool) {
	if r.state != progress.StateRetry || r.task.NextProcessAt.IsZero() {
		return progress.RetryInfo{}, false
	}
	return progress.RetryInfo{
		When:     r.task.NextProcessAt,
		FailedAt: r.task.LastFailedAt,
		Message:  r.task.LastErr,
	}, true
}

// Get returns the completed task's value, or its failure as an error.
func (r *Result) Get(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := r.info.(error); ok {
		return nil, err
	}
	return r.value, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
