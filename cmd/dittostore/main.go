package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/ratelimiter"
	"github.com/marmos91/dittostore/internal/rest"
	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/gc"
	"github.com/marmos91/dittostore/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	listenAddress := flag.String("listen", "", "Override the REST listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flags take precedence over file and environment
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *listenAddress != "" {
		cfg.Server.ListenAddress = *listenAddress
	}

	if err := setupLogging(&cfg.Logging); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	fmt.Println("DittoStore - Versioned Object Store")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := config.CreateContentStore(ctx, &cfg.Content)
	if err != nil {
		log.Fatalf("Failed to create content store: %v", err)
	}
	logger.Info("Content store: %s", cfg.Content.Type)

	dir, err := config.CreateDirectory(ctx, &cfg.Directory)
	if err != nil {
		log.Fatalf("Failed to create directory store: %v", err)
	}
	logger.Info("Directory store: %s", cfg.Directory.Type)
	defer closeIfCloser(dir)

	authManager, err := config.CreateAuthManager(&cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to create auth provider: %v", err)
	}
	logger.Info("Auth provider: %s", cfg.Auth.Type)

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
	}

	collector, err := gc.NewCollector(dir, store, gc.Config{
		Enabled:  cfg.GC.Enabled,
		Interval: cfg.GC.Interval,
		DryRun:   cfg.GC.DryRun,
	})
	if err != nil {
		log.Fatalf("Failed to create garbage collector: %v", err)
	}
	collector.Start()
	defer stopCollector(collector, cfg.Server.ShutdownTimeout)

	limiter := ratelimiter.New(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	if cfg.Server.RateLimit.RequestsPerSecond > 0 {
		logger.Info("Rate limit: %d req/s (burst %d)",
			cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	}

	handler, err := rest.New(rest.Config{
		Directory: dir,
		Content:   store,
		Auth:      authManager,
		Limiter:   limiter,
		Metrics:   metricsResult.HTTPMetrics,
	})
	if err != nil {
		log.Fatalf("Failed to create REST service: %v", err)
	}

	srv := server.New(server.Config{
		ListenAddress:     cfg.Server.ListenAddress,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}, handler, metricsResult.Server)

	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}
}

// setupLogging applies the logging configuration, opening the output file
// when the destination is not a standard stream.
func setupLogging(cfg *config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch cfg.Output {
	case "stdout", "":
		// default destination
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		logger.SetOutput(f)
	}
	return nil
}

// stopCollector shuts the garbage collector down, bounded by the same
// timeout the listeners get.
func stopCollector(c *gc.Collector, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		logger.Error("Error stopping garbage collector: %v", err)
	}
}

// closeIfCloser releases stores that hold OS resources (the badger
// directory keeps a database open).
func closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Error("Error closing store: %v", err)
		}
	}
}
