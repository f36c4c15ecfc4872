package main

import (
	"taskprogress/internal/common"
	"taskprogress/internal/worker"
)

func main() {
	log := common.SetupLogging()
	log.Info("=== Progress Worker Starting ===")

	w := worker.NewWorker(log)
	w.RegisterTasks()

	// blocks until termination signal
	w.Start()

	log.Info("=== Progress Worker Stopped ===")
}
