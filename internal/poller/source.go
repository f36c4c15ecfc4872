package poller

import (
	"context"
	"errors"
	"fmt"

	"taskprogress/internal/celery"
	"taskprogress/internal/common"
	"taskprogress/internal/progress"
	"taskprogress/internal/queue"

	"github.com/gocelery/gocelery"
	"github.com/hibiken/asynq"
)

const (
	BackendAsynq  = "asynq"
	BackendCelery = "celery"
)

var (
	ErrNotFound       = errors.New("task not found")
	ErrUnknownBackend = errors.New("unknown result backend")
)

// Source finds the result record of a task.
type Source interface {
	Lookup(ctx context.Context, taskID string) (progress.Result, error)
}

// Config selects and addresses the result backend.
type Config struct {
	Backend         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	QueueName       string
	CeleryBrokerURL string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	return Config{
		Backend:         common.GetenvOrDefault("RESULT_BACKEND", BackendAsynq),
		RedisAddr:       common.GetenvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   common.GetenvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:         common.GetIntOrDefault("REDIS_DB", 0),
		QueueName:       common.GetenvOrDefault("QUEUE_NAME", "jobs"),
		CeleryBrokerURL: common.GetenvOrDefault("CELERY_BROKER_URL", "redis://localhost:6379/0"),
	}
}

// RedisOpt returns the asynq connection options for this configuration.
func (c Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// NewSource connects to the configured backend. The returned func releases it.
func NewSource(cfg Config) (Source, func() error, error) {
	switch cfg.Backend {
	case BackendAsynq:
		inspector := asynq.NewInspector(cfg.RedisOpt())
		return NewAsynqSource(inspector, cfg.QueueName), inspector.Close, nil
	case BackendCelery:
		pool := celery.NewRedisPool(cfg.CeleryBrokerURL)
		return NewCelerySource(celery.NewBackend(pool)), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// AsynqSource reads tasks of one asynq queue.
type AsynqSource struct {
	inspector queue.Inspector
	queue     string
}

func NewAsynqSource(inspector queue.Inspector, queueName string) *AsynqSource {
	return &AsynqSource{inspector: inspector, queue: queueName}
}

func (s *AsynqSource) Lookup(ctx context.Context, taskID string) (progress.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := queue.Lookup(s.inspector, s.queue, taskID)
	if err != nil {
		if errors.Is(err, queue.ErrResultNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, err
	}
	return res, nil
}

// CelerySource reads Celery result records.
type CelerySource struct {
	backend gocelery.CeleryBackend
}

func NewCelerySource(backend gocelery.CeleryBackend) *CelerySource {
	return &CelerySource{backend: backend}
}

func (s *CelerySource) Lookup(ctx context.Context, taskID string) (progress.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := celery.Lookup(s.backend, taskID)
	if err != nil {
		return nil, err
	}
	return res, nil
}
