package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"trend_backend/config"
	"trend_backend/controllers"
	"trend_backend/middleware"
	"trend_backend/models"
	"trend_backend/routes"
	"trend_backend/scheduler"
	"trend_backend/services/marketdata"
	"trend_backend/services/refresh"
	"trend_backend/services/store"
)

func main() {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Trend backend starting", slog.String("environment", cfg.Server.Environment))
	if cfg.MarketData.APIKey == "" {
		logger.Warn("FINNHUB_API_KEY is not set; provider requests will be rejected")
	}

	bistLoc, err := time.LoadLocation(cfg.MarketStatus.BISTTimezone)
	if err != nil {
		logger.Error("Invalid BIST timezone", slog.String("timezone", cfg.MarketStatus.BISTTimezone), slog.Any("error", err))
		os.Exit(1)
	}

	// Database
	st, err := store.Open(cfg.Database, config.GormLogLevel(cfg), logger)
	if err != nil {
		logger.Error("Database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		logger.Error("Migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := st.SeedDefaults(context.Background(), models.DefaultSymbols); err != nil {
		logger.Error("Seeding failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background refresh
	client := marketdata.NewClient(cfg.MarketData, logger)
	refresher := refresh.NewRefresher(client, st, cfg.Refresh, logger)
	refreshScheduler := refresh.NewScheduler(refresher, cfg.Refresh, logger)
	if cfg.Refresh.BlockStartup {
		logger.Info("Running initial refresh before serving requests")
	}
	refreshScheduler.Start(ctx, cfg.Refresh.BlockStartup)

	// Maintenance jobs
	housekeeping := scheduler.NewScheduler(st, cfg.Housekeeping, logger)
	if err := housekeeping.Start(); err != nil {
		logger.Error("Failed to start housekeeping", slog.Any("error", err))
		os.Exit(1)
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(logger, time.Second))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	stockController := controllers.NewStockController(st, client, refresher, bistLoc, logger)
	routes.SetupRoutes(router, stockController, limiter)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		logger.Info("Server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	gracefulShutdown(server, housekeeping, refreshScheduler, logger)
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, housekeeping *scheduler.Scheduler, refreshScheduler *refresh.Scheduler, logger *slog.Logger) {
	logger.Info("Shutting down gracefully")

	// Stop schedulers first
	housekeeping.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// a pass in progress is allowed to finish
	refreshScheduler.Wait()
	logger.Info("Server exited")
}

func getConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
