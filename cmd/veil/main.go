package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/veilengine/veil/internal/cache"
	"github.com/veilengine/veil/internal/config"
	"github.com/veilengine/veil/internal/logger"
	"github.com/veilengine/veil/internal/metrics"
	"github.com/veilengine/veil/internal/monitor"
	"github.com/veilengine/veil/internal/privacy"
	"github.com/veilengine/veil/internal/redact"
	"github.com/veilengine/veil/internal/server"
	"github.com/veilengine/veil/internal/service"
	"github.com/veilengine/veil/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("Veil %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Veil",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Assemble the engine
	patternCache := cache.New(cfg.Cache, log.WithComponent("cache"))
	library := privacy.NewLibrary(patternCache, log.WithComponent("privacy"))
	library.AddWhitelistTerms(cfg.Privacy.WhitelistTerms...)

	policy, err := cfg.BuildPolicy()
	if err != nil {
		log.Fatal("Invalid redaction policy", zap.Error(err))
	}

	engine := redact.NewEngine(library, log.WithComponent("redact"))
	processor := stream.NewProcessor(patternCache, cfg.Stream, log.WithComponent("stream"))

	mon := monitor.New(cfg.Monitor, log.WithComponent("monitor"))
	mon.SetCacheSizer(patternCache.Len)
	mon.SetCleanup(patternCache.Clear)
	mon.Start()
	defer mon.Stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	m.RegisterCacheSize(prometheus.DefaultRegisterer, patternCache.Len)

	svc := service.New(library, engine, processor, mon, m, log.WithComponent("service"))

	// Warm the cache with every configured pattern before serving.
	var sources []string
	for _, p := range library.PatternsFor(nil) {
		sources = append(sources, p.Source())
	}
	patternCache.Preload(sources)

	srv := server.New(cfg, svc, patternCache, mon, policy, log)

	// Hot-reload policy and whitelist on config changes
	if err := config.Watch(cfg, func(updated *config.Config) {
		newPolicy, err := updated.BuildPolicy()
		if err != nil {
			log.Warn("Ignoring invalid policy from config reload", zap.Error(err))
			return
		}
		library.AddWhitelistTerms(updated.Privacy.WhitelistTerms...)
		srv.UpdatePolicy(newPolicy)
	}); err != nil {
		log.Warn("Config watching unavailable", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Graceful shutdown failed", zap.Error(err))
		}
	}

	log.Info("Veil stopped")
}

// performHealthCheck probes a locally running instance.
func performHealthCheck() {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}
