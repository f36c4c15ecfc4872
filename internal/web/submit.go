package web

import (
	"encoding/json"
	"fmt"

	"taskprogress/internal/celery"
	"taskprogress/internal/worker"

	"github.com/gocelery/gocelery"
	"github.com/gomodule/redigo/redis"
	"github.com/hibiken/asynq"
)

// submitter starts new jobs on the configured backend
type submitter interface {
	// Pending counts jobs waiting for or occupying a worker.
	Pending() (int, error)
	// Submit starts a job from the request body and returns its id.
	Submit(body []byte) (string, error)
}

type asynqEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type asynqSubmitter struct {
	client    asynqEnqueuer
	inspector asynqInspector
	queue     string
}

func (s *asynqSubmitter) Pending() (int, error) {
	info, err := s.inspector.GetQueueInfo(s.queue)
	if err != nil {
		return 0, err
	}
	return info.Pending + info.Active, nil
}

func (s *asynqSubmitter) Submit(body []byte) (string, error) {
	var req worker.ProcessItemsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	task, err := worker.NewProcessItemsTask(req, s.queue)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	info, err := s.client.Enqueue(task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

type celeryDelayer interface {
	Delay(task string, args ...interface{}) (*gocelery.AsyncResult, error)
	DelayKwargs(task string, args map[string]interface{}) (*gocelery.AsyncResult, error)
}

// celeryRequest mirrors the args/kwargs pair of a Celery task call
type celeryRequest struct {
	Args   []interface{}          `json:"args"`
	Kwargs map[string]interface{} `json:"kwargs"`
}

type celerySubmitter struct {
	client   celeryDelayer
	pool     *redis.Pool
	taskName string
}

func (s *celerySubmitter) Pending() (int, error) {
	n, err := celery.QueueLength(s.pool)
	return int(n), err
}

func (s *celerySubmitter) Submit(body []byte) (string, error) {
	var req celeryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(req.Args) > 0 && len(req.Kwargs) > 0 {
		return "", fmt.Errorf("%w: use either args or kwargs", errBadRequest)
	}

	var (
		result *gocelery.AsyncResult
		err    error
	)
	if len(req.Kwargs) > 0 {
		result, err = s.client.DelayKwargs(s.taskName, req.Kwargs)
	} else {
		result, err = s.client.Delay(s.taskName, req.Args...)
	}
	if err != nil {
		return "", err
	}
	return result.TaskID, nil
}
