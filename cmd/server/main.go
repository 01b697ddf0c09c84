package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodorder-backend/internal/config"
	"foodorder-backend/internal/database"
	"foodorder-backend/internal/logging"
	"foodorder-backend/internal/server"
	"foodorder-backend/internal/telemetry"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if err := logging.Setup(cfg); err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize telemetry")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logrus.WithError(err).Error("telemetry shutdown")
		}
	}()

	db, err := database.Open(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	if err := os.MkdirAll(cfg.MenuImagePath, 0o755); err != nil {
		logrus.WithError(err).Fatal("failed to create menu image directory")
	}

	app := server.New(cfg, db)

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("server shutdown")
		}
	}()

	logrus.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logrus.WithError(err).Error("server stopped")
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Error("failed to close database connection")
		}
	}
	logrus.Info("server stopped")
}
