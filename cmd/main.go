package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"

	"github.com/narkins/contentd/internal/api"
	"github.com/narkins/contentd/internal/blogcache"
	"github.com/narkins/contentd/internal/cache"
	"github.com/narkins/contentd/internal/config"
	"github.com/narkins/contentd/internal/feedgen"
	"github.com/narkins/contentd/internal/indexnow"
	"github.com/narkins/contentd/internal/logger"
	"github.com/narkins/contentd/internal/middleware"
	"github.com/narkins/contentd/internal/precompile"
	"github.com/narkins/contentd/internal/search"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.IsDevelopment(),
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting application...")

	fs := afero.NewOsFs()

	// Shared cache tier is optional; resolver runs fine without it
	var shared cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			log.Error().Err(err).Msg("Redis unavailable, continuing without shared cache")
		} else {
			shared = redisCache
			defer func() {
				log.Info().Msg("Closing Redis client...")
				if err := redisCache.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing Redis client")
				}
			}()
		}
	}

	postsTTL := cfg.PostsTTL
	if postsTTL == 0 {
		postsTTL = blogcache.ProdPostsTTL
		if cfg.IsDevelopment() {
			postsTTL = blogcache.DevPostsTTL
		}
	}

	store := blogcache.NewStore(fs, cfg.CacheDir)
	opts := []blogcache.Option{
		blogcache.WithTTLs(postsTTL, cfg.IndexTTL),
		blogcache.WithLogger(*log),
	}
	if shared != nil {
		opts = append(opts, blogcache.WithSharedCache(shared))
	}
	resolver := blogcache.NewResolver(store, fs, cfg.ContentDir, opts...)

	idx, err := search.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize search index")
	}
	defer idx.Close()

	feed := feedgen.NewGenerator(cfg.SiteURL, cfg.SiteTitle, cfg.SiteDescription)

	preOpts := []precompile.Option{precompile.WithLogger(*log)}
	if cfg.MaxWorkers > 0 {
		preOpts = append(preOpts, precompile.WithWorkers(cfg.MaxWorkers))
	}
	pre := precompile.New(fs, cfg.ContentDir, cfg.CacheDir, preOpts...)

	inow, err := indexnow.NewClient(cfg.SiteURL, cfg.IndexNowKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid site URL")
	}

	handlers := api.NewHandlers(cfg, resolver, idx, feed, pre, inow)

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Setup API routes
	api.SetupRoutes(app, handlers, cfg.AdminAPIKey)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown the server
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
