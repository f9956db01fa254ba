package main

import (
	"creative-pipeline/internal/app"
	"creative-pipeline/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	app.Run(cfg)
}
