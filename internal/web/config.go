package web

import (
	"time"

	"taskprogress/internal/common"
	"taskprogress/internal/poller"
)

// Config holds configuration for the polling server
type Config struct {
	Poller              poller.Config
	Production          bool
	Addr                string
	MaxPending          int
	CeleryTaskName      string
	AbandonmentTimeout  time.Duration
	AbandonmentInterval time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	return Config{
		Poller: poller.LoadConfig(),
		// CORS is enabled only in prod profile
		Production:          common.GetenvOrDefault("PROFILE", "") == "PRODUCTION",
		Addr:                common.GetenvOrDefault("HTTP_ADDR", "0.0.0.0:8080"),
		MaxPending:          common.GetIntOrDefault("MAX_PENDING_TASKS", 10),
		CeleryTaskName:      common.GetenvOrDefault("CELERY_TASK_NAME", "process_items"),
		AbandonmentTimeout:  time.Duration(common.GetIntOrDefault("TASK_ABANDONMENT_TIMEOUT", 15)) * time.Minute,
		AbandonmentInterval: time.Duration(common.GetIntOrDefault("TASK_ABANDONMENT_CHECK_INTERVAL", 2)) * time.Minute,
	}
}
