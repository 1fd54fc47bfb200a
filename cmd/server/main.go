package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"linkgate/internal/cache"
	"linkgate/internal/config"
	"linkgate/internal/handlers"
	"linkgate/internal/models"
	"linkgate/internal/repository"
	"linkgate/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mode, err := services.ParseAccountingMode(cfg.AccountingMode)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Setup Logger
	var handler slog.Handler
	if cfg.AppEnv == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 3. Initialize Database
	db, err := repository.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 4. Initialize Redis
	rdb, err := repository.InitRedis(strings.TrimPrefix(cfg.RedisURL, "redis://"), cfg.RedisPassword, 0)
	if err != nil {
		logger.Warn("Failed to connect to Redis", "error", err)
		rdb = nil
	}

	// 5. Run Migrations
	if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		logger.Info("Running database migrations...")
		if err := repository.RunMigrations(cfg.DatabaseURL, ""); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else {
		if err := db.AutoMigrate(&models.Link{}, &models.GeoRule{}, &models.Experiment{}, &models.Variant{}, &models.ClickRecord{}); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
	}

	// 6. Initialize Services
	var linkCache cache.LinkCache
	var queue services.PendingQueue
	if rdb != nil {
		linkCache = cache.NewRedisLinkCache(rdb, cfg.CacheTTL())
		queue = repository.NewRedisPendingQueue(rdb)
	} else {
		linkCache = cache.NewMemoryLinkCache(cfg.CacheTTL())
		queue = services.NewMemoryPendingQueue()
	}

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	geoIPService := services.NewGeoIPService(cfg, logger)
	publisher := services.NewClickPublisher(rdb, logger)
	resolver := services.NewResolver(cfg.UTMKeyList())
	accountant := services.NewAccountant(mode, linkRepo, clickRepo, queue, publisher, logger,
		cfg.QueuedBufferSize, cfg.FlushInterval(), cfg.FlushBatchSize)
	rateLimiter := services.NewRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitBudget, logger)
	linkService := services.NewLinkService(db, linkCache)

	// 7. Initialize Handler
	h := handlers.NewHandler(cfg, logger, linkCache, linkRepo, linkService, geoIPService, resolver, accountant, rateLimiter)

	// 8. Setup Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := h.SetupRouter()

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Background Context for workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Start Background Workers
	go accountant.Start(workerCtx)
	if mode == services.ModeBatched {
		go accountant.StartFlusher(workerCtx)
	}
	go geoIPService.Init()
	go geoIPService.StartUpdater(workerCtx)
	rateLimiter.StartCleanup(10 * time.Minute)

	// Initializing server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "accounting_mode", string(mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	// Graceful shutdown timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	workerCancel()
	// Wait a tiny bit for workers (the flusher drains once on cancel)
	time.Sleep(100 * time.Millisecond)

	logger.Info("Server exiting")
	return nil
}
