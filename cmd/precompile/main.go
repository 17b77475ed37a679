// Command precompile builds the on-disk blog cache from MDX sources,
// optionally publishes it to R2 and pings IndexNow with changed URLs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"github.com/narkins/contentd/internal/config"
	"github.com/narkins/contentd/internal/indexnow"
	"github.com/narkins/contentd/internal/logger"
	"github.com/narkins/contentd/internal/precompile"
	"github.com/narkins/contentd/internal/storage"
)

type options struct {
	ContentDir string `long:"content-dir" env:"CONTENT_DIR" default:"./content/blogs" description:"Directory containing MDX sources"`
	CacheDir   string `long:"cache-dir" env:"CACHE_DIR" default:"./public/blog-cache" description:"Output directory for the compiled cache"`
	Workers    int    `long:"workers" env:"MAX_WORKERS" description:"Worker count (default: derived from CPU count)"`
	Publish    bool   `long:"publish" description:"Upload the compiled cache to R2 after a successful build"`
	Ping       bool   `long:"ping" description:"Submit changed URLs to IndexNow after the build"`
	Verbose    bool   `long:"verbose" short:"v" description:"Enable debug logging"`
}

func main() {
	var opts options

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	level := logger.InfoLevel
	if opts.Verbose {
		level = logger.DebugLevel
	}
	if err := logger.Init(logger.Config{Level: level, Output: "stderr", Pretty: true}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()

	cfg := config.Load()

	ctx := context.Background()

	preOpts := []precompile.Option{precompile.WithLogger(*log)}
	if opts.Workers > 0 {
		preOpts = append(preOpts, precompile.WithWorkers(opts.Workers))
	}
	pre := precompile.New(afero.NewOsFs(), opts.ContentDir, opts.CacheDir, preOpts...)

	summary, err := pre.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Precompile run failed")
	}

	log.Info().
		Int("total", summary.Total).
		Int("compiled", summary.Compiled).
		Int("reused", summary.Reused).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("Precompile run finished")

	if summary.Failed > 0 {
		for _, buildErr := range summary.Errors {
			log.Warn().Err(buildErr).Msg("Compilation error")
		}
	}

	if opts.Publish {
		publish(ctx, cfg, opts.CacheDir)
	}

	if opts.Ping && len(summary.ChangedURLs) > 0 {
		ping(ctx, cfg, summary.ChangedURLs)
	}
}

func publish(ctx context.Context, cfg *config.Config, cacheDir string) {
	log := logger.Get()

	r2 := storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKey,
		SecretAccessKey: cfg.R2SecretKey,
		Bucket:          cfg.R2Bucket,
		Prefix:          cfg.R2Prefix,
	}
	if !r2.Enabled() {
		log.Warn().Msg("R2 is not configured, skipping publish")
		return
	}

	publisher, err := storage.NewPublisher(ctx, r2)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize publisher")
	}

	uploaded, err := publisher.PublishDir(ctx, cacheDir)
	if err != nil {
		log.Fatal().Err(err).Int("uploaded", uploaded).Msg("Publish failed")
	}
	if err := publisher.PublishMarker(ctx, time.Now()); err != nil {
		log.Error().Err(err).Msg("Failed to write publish marker")
	}

	log.Info().Int("uploaded", uploaded).Str("bucket", cfg.R2Bucket).Msg("Cache published")
}

func ping(ctx context.Context, cfg *config.Config, changed []string) {
	log := logger.Get()

	client, err := indexnow.NewClient(cfg.SiteURL, cfg.IndexNowKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid site URL")
	}
	if !client.Enabled() {
		log.Warn().Msg("IndexNow key is not configured, skipping ping")
		return
	}

	urls := make([]string, 0, len(changed))
	for _, u := range changed {
		urls = append(urls, cfg.SiteURL+u)
	}

	if err := client.Submit(ctx, urls); err != nil {
		log.Error().Err(err).Msg("IndexNow submission failed")
		return
	}
	log.Info().Int("urls", len(urls)).Msg("Submitted changed URLs to IndexNow")
}
