package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"watermarkd/internal"
	"watermarkd/internal/logging"
	"watermarkd/internal/pipeline"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		// The logger's error file path is itself configuration, so
		// config failures go straight to stderr.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.ErrorsLog)
	if err != nil {
		os.Stderr.WriteString("open errors log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	svc, err := pipeline.New(cfg, log)
	if err != nil {
		log.Errorf("build pipeline: %v", err)
		os.Exit(1)
	}

	if err := svc.Run(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
	log.Infof("stopped")
}
