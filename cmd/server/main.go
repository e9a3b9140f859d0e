package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/httpapi"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/di"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/config"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/logger"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/telemetry"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Setup(ctx, "literature-retrieval", cfg.Telemetry.Endpoint, cfg.Telemetry.Enabled)
	if err != nil {
		slog.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithOTel(cfg.Telemetry.Enabled)
	slog.SetDefault(log)

	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("http_request",
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()))
			return nil
		},
	}))

	handler := httpapi.NewHandler(components.Search)
	handler.Register(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	log.Info("server_started", slog.String("port", cfg.Port), slog.String("vector_backend", cfg.Vector.Backend))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down server", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("failed to shut down telemetry", "error", err)
	}
}
