package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/scalecode-solutions/babytrackerapi/internal/api"
	"github.com/scalecode-solutions/babytrackerapi/internal/auth"
	"github.com/scalecode-solutions/babytrackerapi/internal/config"
	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/lock"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

func main() {
	cfg, err := config.Load(true)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Migrate(ctx); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	authenticator := auth.New(cfg.AuthTokenKey)

	hub := push.NewHub(cfg.AllowedOrigin(), logger)
	go hub.Run(ctx)

	var provider push.Provider
	if cfg.PushGatewayURL != "" {
		provider = push.NewWebhookProvider(cfg.PushGatewayURL, cfg.PushGatewayKey, logger)
		logger.Info("Push gateway configured", "url", cfg.PushGatewayURL)
	} else {
		provider = push.NewMockProvider(logger)
		logger.Warn("PUSH_GATEWAY_URL not set, notifications will only be logged")
	}
	dispatcher := push.NewDispatcher(provider, hub, logger)

	opts := []monitor.Option{
		monitor.WithInterval(cfg.MonitorInterval),
		monitor.WithDedupeWindow(cfg.DedupeWindow),
	}
	if cfg.RedisAddr != "" {
		locker := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := locker.Ping(ctx); err != nil {
			logger.Error("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer locker.Close()
		opts = append(opts, monitor.WithLocker(locker))
		logger.Info("Monitor leader lock enabled", "addr", cfg.RedisAddr, "owner", locker.Owner())
	}
	mon := monitor.New(database, dispatcher, logger, opts...)
	if cfg.MonitorAutostart {
		mon.Start()
	}

	if len(cfg.OperatorIDs) == 0 {
		logger.Warn("OPERATOR_USER_IDS not set, the warning monitor cannot be started or stopped over HTTP")
	}
	apiHandler := api.New(database, authenticator, mon, hub, logger, cfg.OperatorIDs)

	r := mux.NewRouter()
	apiHandler.Routes(r)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Baby tracker API starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	mon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	cancel()

	logger.Info("Server exited")
}
