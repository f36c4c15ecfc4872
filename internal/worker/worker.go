package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskprogress/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Worker represents the asynq worker with all its dependencies
type Worker struct {
	asynqServer *asynq.Server
	mux         *asynq.ServeMux
	config      Config
	log         *logrus.Logger
	revocations revokeChecker
	redis       *redis.Client
}

// NewWorker creates and initializes a new Worker instance
func NewWorker(log *logrus.Logger) *Worker {
	log.Info("Initializing worker...")

	config := LoadConfig()

	asynqServer := asynq.NewServer(
		config.RedisOpt(),
		asynq.Config{
			Concurrency: config.Concurrency,
			Queues: map[string]int{
				config.QueueName: 10, // priority weight
				"critical":       20, // higher priority for critical tasks
			},
			// Exponential backoff: 1min, 2min, 4min, 8min
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				log.WithFields(logrus.Fields{"task_id": taskID, "type": task.Type()}).
					Errorf("Task %s failed: %v", task.Type(), err)
			}),
			Logger:   log,
			LogLevel: asynqLogLevel(log.GetLevel()),
		},
	)

	redisClient := queue.NewRedisClient(config.RedisOpt())
	w := &Worker{
		asynqServer: asynqServer,
		mux:         asynq.NewServeMux(),
		config:      config,
		log:         log,
		revocations: queue.NewRevocations(redisClient),
		redis:       redisClient,
	}
	log.WithField("queue", config.QueueName).Info("Worker initialized successfully")
	return w
}

func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	return time.Duration(1<<uint(n)) * time.Minute
}

func asynqLogLevel(level logrus.Level) asynq.LogLevel {
	switch {
	case level >= logrus.DebugLevel:
		return asynq.DebugLevel
	case level == logrus.InfoLevel:
		return asynq.InfoLevel
	case level == logrus.WarnLevel:
		return asynq.WarnLevel
	default:
		return asynq.ErrorLevel
	}
}

// Start starts the worker and waits for tasks
func (w *Worker) Start() {
	w.log.Info("Starting Asynq worker...")

	go func() {
		if err := w.asynqServer.Run(w.mux); err != nil {
			w.log.Fatalf("Could not run asynq server: %v", err)
		}
	}()

	w.log.Info("Worker started, waiting for tasks...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	w.log.Info("Shutting down worker...")
	w.asynqServer.Shutdown()
	if err := w.redis.Close(); err != nil {
		w.log.Warnf("Failed to close redis client: %v", err)
	}
	w.log.Info("Worker stopped")
}
