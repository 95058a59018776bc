package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mokanichokani/ledger-service/internal/loadgen"
	"github.com/mokanichokani/ledger-service/internal/logger"
	"github.com/mokanichokani/ledger-service/internal/observability"
)

const version = "1.0.0"

func main() {
	log, err := logger.New(getEnv("LOG_MODE", "dev"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     getEnv("OTEL_ENABLED", "true") == "true",
		ServiceName: getEnv("SERVICE_NAME", "journey-simulator"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		Version:     version,
	})
	if shutdownOTel != nil {
		defer shutdownOTel(context.Background())
	}

	scenario, err := loadgen.LoadScenario(getEnv("SCENARIO_FILE", ""))
	if err != nil {
		log.Fatal("failed to load scenario", "error", err)
	}
	if url := getEnv("SERVICE_URL", ""); url != "" {
		scenario.ServiceURL = url
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("stopping simulation")
		cancel()
	}()

	runner := loadgen.NewRunner(scenario, log)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("simulation failed", "error", err)
	}
	log.Info("simulation stopped")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
