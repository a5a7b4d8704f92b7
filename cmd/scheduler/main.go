package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segyhp/loan-tracker/internal/app"
	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/scheduler"
	"github.com/segyhp/loan-tracker/pkg/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logger.New(cfg.Logging)
	log.Info("Starting loan summary scheduler...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Health.Timeout)
	application, err := app.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	s, err := scheduler.New(cfg.Scheduler, cfg.Location(), application.Service, log, cfg.Server.WriteTimeout)
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule summary refresh")
	}

	// Warm the cache once instead of waiting for the first tick.
	s.RefreshSummaries(context.Background())

	s.Start()
	log.WithFields(logrus.Fields{
		"spec":     cfg.Scheduler.Spec,
		"timezone": cfg.Scheduler.Timezone,
		"next_run": s.Next(),
	}).Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	s.Stop()
	log.Info("Scheduler stopped")
}
