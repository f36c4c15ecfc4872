package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"taskprogress/internal/progress"
	"taskprogress/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TaskTypeProcessItems = "process_items"
	DefaultQueue         = "jobs"

	// maxItems bounds a single job so one request cannot occupy a worker slot for hours.
	maxItems = 100000
)

var (
	ErrInvalidPayload = errors.New("invalid process_items payload")
	ErrTooManyItems   = errors.New("too many items in process_items request")
)

// ProcessItemsRequest is the payload of a process_items task
type ProcessItemsRequest struct {
	Total       int    `json:"total"`
	StepMS      int    `json:"step_ms"`
	Description string `json:"description"`
}

// Validate checks the request before it is enqueued or processed
func (r ProcessItemsRequest) Validate() error {
	if r.Total < 0 || r.StepMS < 0 {
		return fmt.Errorf("%w: total and step_ms must not be negative", ErrInvalidPayload)
	}
	if r.Total > maxItems {
		return fmt.Errorf("%w: %d > %d", ErrTooManyItems, r.Total, maxItems)
	}
	return nil
}

// NewProcessItemsTask builds the asynq task for a request
func NewProcessItemsTask(req ProcessItemsRequest, queueName string) (*asynq.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskTypeProcessItems,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Hour),
		asynq.Queue(queueName),
		asynq.Retention(24*time.Hour), // Keep task info for 24h
	), nil
}

// stateStore is what a handler needs from the task's result record
type stateStore interface {
	progress.StateUpdater
	WriteResult(ctx context.Context, value any) error
}

// revokeChecker reports pending revoke requests, see queue.Revocations
type revokeChecker interface {
	Requested(ctx context.Context, taskID string) (bool, error)
}

// RegisterTasks registers all task handlers with the mux
func (w *Worker) RegisterTasks() {
	w.log.Infof("Registering task: %s", TaskTypeProcessItems)
	w.mux.HandleFunc(TaskTypeProcessItems, w.HandleProcessItems)
}

// HandleProcessItems is the asynq task handler for process_items
func (w *Worker) HandleProcessItems(ctx context.Context, task *asynq.Task) error {
	store := queue.NewStateWriter(task.ResultWriter())
	return w.processItems(ctx, store.TaskID(), store, task.Payload())
}

func (w *Worker) processItems(ctx context.Context, taskID string, store stateStore, payload []byte) (err error) {
	log := w.log.WithField("task_id", taskID)
	log.Infof("[Task %s] Starting %s", taskID, TaskTypeProcessItems)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Task %s] Panic recovered: %v\n%s", taskID, r, debug.Stack())
			err = fmt.Errorf("panic: %v: %w", r, asynq.SkipRetry)
		}
	}()

	var req ProcessItemsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Warnf("[Task %s] Failed to parse request JSON (non-retriable): %v", taskID, err)
		return fmt.Errorf("%w: %v: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}
	if err := req.Validate(); err != nil {
		log.Warnf("[Task %s] Validation error detected, will not retry: %v", taskID, err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	recorder := progress.NewRecorder(store)
	if _, _, err := recorder.SetProgress(ctx, 0, req.Total, req.Description); err != nil {
		return err
	}

	step := time.Duration(req.StepMS) * time.Millisecond
	for i := 1; i <= req.Total; i++ {
		if w.revokeRequested(ctx, taskID) {
			log.Infof("[Task %s] Revoked after %d of %d items", taskID, i-1, req.Total)
			return queue.Revoke(queue.ErrRevoked)
		}
		if err := w.wait(ctx, step); err != nil {
			// asynq requeues tasks interrupted by shutdown or timeout
			log.Infof("[Task %s] Interrupted after %d of %d items: %v", taskID, i-1, req.Total, err)
			return err
		}
		if _, _, err := recorder.SetProgress(ctx, i, req.Total, req.Description); err != nil {
			log.Errorf("[Task %s] Failed to report progress: %v", taskID, err)
			return err
		}
	}

	result := map[string]any{"processed": req.Total}
	if err := store.WriteResult(ctx, result); err != nil {
		log.Errorf("[Task %s] Failed to write result: %v", taskID, err)
		return err
	}

	log.WithFields(logrus.Fields{"processed": req.Total}).Infof("[Task %s] Task completed successfully", taskID)
	return nil
}

func (w *Worker) revokeRequested(ctx context.Context, taskID string) bool {
	if w.revocations == nil {
		return false
	}
	revoked, err := w.revocations.Requested(ctx, taskID)
	if err != nil {
		// keep working, the next item checks again
		w.log.WithField("task_id", taskID).Warnf("[Task %s] %v", taskID, err)
		return false
	}
	return revoked
}

// wait pauses for one item's worth of work, returning early on cancellation
func (w *Worker) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
