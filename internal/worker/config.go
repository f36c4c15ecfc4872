package worker

import (
	"taskprogress/internal/common"

	"github.com/hibiken/asynq"
)

// Config holds configuration for the worker
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	QueueName     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	return Config{
		RedisAddr:     common.GetenvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: common.GetenvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       common.GetIntOrDefault("REDIS_DB", 0),
		Concurrency:   common.GetIntOrDefault("WORKER_CONCURRENCY", 10),
		QueueName:     common.GetenvOrDefault("QUEUE_NAME", DefaultQueue),
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
