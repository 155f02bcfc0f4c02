package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"nutrishaweb/src/internal/config"
	"nutrishaweb/src/internal/domain"
	"nutrishaweb/src/internal/logging"
	"nutrishaweb/src/internal/service"
)

var Version = "1.0.0"

func main() {
	log := logging.New(os.Stdout, false)

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.Version = Version
	if cfg.Debug {
		log = logging.New(os.Stdout, true)
	}

	// Relative lookups (the on-change hook, default documents) resolve
	// against the served directory.
	if err := os.Chdir(cfg.Root); err != nil {
		log.Fatalf("Cannot enter %s: %v", cfg.Root, err)
	}

	// Initialize Context
	ctx := &domain.Context{
		Config: *cfg,
		Log:    log,
	}

	// Create and Run Orchestrator
	orchestrator := service.CreateOrchestrator(ctx, os.Stdout)
	if err := orchestrator.Run(context.Background()); err != nil {
		log.Fatalf("Error running server: %v", err)
	}
}
