package main

import (
	"os"
	"os/signal"
	"syscall"

	"tripmind/internal/bootstrap"
	"tripmind/pkg/logger"
)

func main() {
	container := bootstrap.NewContainer()
	container.MustInit()
	defer logger.Sync()

	log := container.Log

	if err := container.Start(); err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("Shutdown signal received", "signal", sig.String())
	case <-container.Done():
		log.Warn("Container stopped unexpectedly")
	}

	container.Shutdown()
}
