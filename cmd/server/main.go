package main

import (
	"taskprogress/internal/common"
	"taskprogress/internal/web"
)

func main() {
	log := common.SetupLogging()

	app, err := web.NewApp(web.LoadConfig(), log)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	if err := app.Serve(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
