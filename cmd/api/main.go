package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tubetuner/tubetuner/internal/cache"
	"github.com/tubetuner/tubetuner/internal/config"
	"github.com/tubetuner/tubetuner/internal/library"
	"github.com/tubetuner/tubetuner/internal/logging"
	"github.com/tubetuner/tubetuner/internal/middleware"
	"github.com/tubetuner/tubetuner/internal/resolver"
)

type API struct {
	store        library.Store
	checkpointer *library.Checkpointer
	resolver     *resolver.Resolver
	log          *logging.Logger
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize the library store
	var store library.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = library.NewPostgresStore(context.Background(), cfg.Database.DSN)
	default:
		store, err = library.NewSQLiteStore(cfg.Database.Path)
	}
	if err != nil {
		logger.Fatalf("Failed to open library store: %v", err)
	}
	defer store.Close()
	logger.Infof("Library store ready (driver=%s)", cfg.Database.Driver)

	// Optional metadata cache
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer c.Close()
		store = library.NewCachedStore(store, c, cfg.Redis.TTL, logger)
		logger.Info("Metadata cache enabled")
	}

	checkpointer := library.NewCheckpointer(store, cfg.Library.CheckpointWindow, logger)
	res := resolver.New(store, logger)

	api := &API{
		store:        store,
		checkpointer: checkpointer,
		resolver:     res,
		log:          logger,
	}

	// Setup router
	router := setupRouter(api, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}

	// Best-effort flush of pending playback positions before the store closes.
	checkpointer.Close()

	logger.Info("Server stopped")
}

func setupRouter(api *API, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.log))
	router.Use(middleware.Metrics())

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	// Health check and metrics
	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter))
	{
		// Videos
		v1.POST("/videos", api.uploadVideos)
		v1.GET("/videos", api.listVideos)
		v1.GET("/videos/:id", api.getVideo)
		v1.GET("/videos/:id/content", api.getVideoContent)
		v1.PATCH("/videos/:id", api.renameVideo)
		v1.DELETE("/videos/:id", api.deleteVideo)

		// Subtitles
		v1.PUT("/videos/:id/subtitle", api.setSubtitle)
		v1.GET("/videos/:id/subtitle", api.getSubtitle)
		v1.DELETE("/videos/:id/subtitle", api.removeSubtitle)

		// Playback
		v1.PUT("/videos/:id/position", api.savePosition)
		v1.GET("/play", api.play)

		// Library stats
		v1.GET("/stats", api.stats)
	}

	return router
}
