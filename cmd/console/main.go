// Package main runs the marketplace console API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R3E-Network/marketplace_console/internal/app/runtime"
	"github.com/R3E-Network/marketplace_console/internal/config"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault("console").WithError(err).Fatal("load configuration")
	}
	log := logging.New("console", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("initialise console")
	}

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("server error")
		_ = application.Shutdown(context.Background())
		os.Exit(1)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	log.Info("console stopped")
}
