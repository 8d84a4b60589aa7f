// Command server runs the alert convergence service: the ingest pipeline,
// the publisher, and the admin API, in one process.
//
// # Usage
//
//	server -config /etc/alertconv/config.yaml -migrate
//
// # Configuration
//
// Configuration can be provided via:
// - Config file (-config)
// - Environment variables (ALERTCONV_*)
// - Command-line flags
//
// Flags win over environment variables, which win over the file. Database
// and Redis URLs left empty after all three are resolved through the
// secrets backend (1Password Connect or environment).
//
// # Examples
//
// Run with flags against a local stack:
//
//	server -database postgres://localhost/alertconv -debug
//
// Recreate the schema and start fresh:
//
//	server -config config.yaml -reset-db -migrate
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillsec/alertconv/db/migrate"
	"github.com/quillsec/alertconv/internal/api"
	"github.com/quillsec/alertconv/internal/bus"
	"github.com/quillsec/alertconv/internal/cache"
	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/fields"
	"github.com/quillsec/alertconv/internal/ingest"
	"github.com/quillsec/alertconv/internal/metrics"
	"github.com/quillsec/alertconv/internal/secrets"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/internal/worker"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file")
		port       = flag.Int("port", 0, "HTTP server port (overrides config)")
		dbURL      = flag.String("database", "", "Database URL (postgres://...)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		runMigrate = flag.Bool("migrate", false, "Run pending migrations before starting")
		resetDB    = flag.Bool("reset-db", false, "Drop all tables and exit (continues when combined with -migrate)")
		version    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("alertconv-server v0.1.0")
		os.Exit(0)
	}

	// Set up logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Load configuration
	cfg := config.DefaultConfig()
	if *configFile != "" {
		fileCfg, err := config.LoadFromFile(*configFile)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}
	cfg.ApplyEnvOverrides()

	// Apply flag overrides
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}
	if *debug {
		cfg.Server.Debug = true
	}
	if cfg.Server.Debug && logLevel != slog.LevelDebug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	// Resolve credentials missing from config and environment.
	if cfg.Database.URL == "" || cfg.Redis.URL == "" {
		if err := resolveSecrets(cfg, logger); err != nil {
			logger.Error("failed to resolve credentials", "error", err)
			os.Exit(1)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	connectTimeout := cfg.Database.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = config.DBPingTimeout
	}
	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	st, err := store.NewStoreFromURL(connectCtx, cfg.Database.URL)
	if err == nil {
		err = st.Ping(connectCtx)
	}
	connectCancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("connected to database")

	// Schema management flags. -reset-db alone exits after dropping.
	if *resetDB {
		logger.Warn("dropping all tables")
		if err := migrate.Reset(ctx, st.Pool(), logger); err != nil {
			logger.Error("database reset failed", "error", err)
			os.Exit(1)
		}
		if !*runMigrate {
			logger.Info("database reset complete")
			return
		}
	}
	if *runMigrate {
		if err := migrate.Run(ctx, st.Pool(), logger); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	// Field dictionary; falls back to the built-in set when the file is
	// missing.
	dict := fields.Load(cfg.Fields.DictionaryPath, logger)

	// Redis: one consumer for the inbound streams, one producer for the
	// outbound stream, one plain client for the response cache.
	consumerName := cfg.Ingest.Consumer
	if consumerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = fmt.Sprintf("alertconv-%d", os.Getpid())
		}
		consumerName = hostname
	}
	consumer, err := bus.NewConsumer(cfg.Redis.URL, cfg.Ingest.Group, consumerName, cfg.Ingest.Streams, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	if err := consumer.EnsureGroups(ctx); err != nil {
		logger.Error("failed to create consumer groups", "error", err)
		os.Exit(1)
	}

	producer, err := bus.NewProducer(cfg.Redis.URL, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	responseCache, err := cache.New(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("response cache disabled", "error", err)
		responseCache = nil
	} else {
		defer responseCache.Close()
	}

	counters := &metrics.PipelineCounters{}
	collector := metrics.NewCollector(st, counters)

	// Ingest pipeline
	assets, err := ingest.LoadAssets(ctx, st, logger)
	if err != nil {
		logger.Error("failed to load rules and tags", "error", err)
		os.Exit(1)
	}
	pipeCfg := ingest.DefaultPipelineConfig()
	if cfg.Ingest.Concurrency > 0 {
		pipeCfg.Concurrency = cfg.Ingest.Concurrency
	}
	pipeCfg.RateLimit = cfg.Ingest.RateLimit
	pipeline := ingest.NewPipeline(st, consumer, assets, counters, pipeCfg, logger)
	pipeline.Start(ctx)

	// Publisher
	pubCfg := worker.DefaultPublisherConfig()
	if cfg.Publish.Stream != "" {
		pubCfg.Stream = cfg.Publish.Stream
	}
	if cfg.Publish.DeliveryTimeout > 0 {
		pubCfg.DeliveryTimeout = cfg.Publish.DeliveryTimeout
	}
	publisher := worker.NewPublisher(st, producer, counters, pubCfg, logger)
	publisher.Start(ctx)

	// Admin API
	server := api.NewServer(st, publisher, dict, cfg.AlarmTypes, collector, responseCache, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  config.HTTPReadTimeout,
		WriteTimeout: config.HTTPWriteTimeout,
		IdleTimeout:  config.HTTPIdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server",
			"port", cfg.Server.Port,
			"streams", cfg.Ingest.Streams,
			"group", cfg.Ingest.Group,
			"consumer", consumerName)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	// Stop accepting requests, then drain the workers. The publisher and
	// pipeline stop via both context cancel and their own Stop waits.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	cancel()
	pipeline.Stop()
	publisher.Stop()
	logger.Info("shutdown complete")
}

// resolveSecrets fills empty connection URLs from the secrets backend. The
// backend choice follows the config file, then the environment.
func resolveSecrets(cfg *config.Config, logger *slog.Logger) error {
	secretsCfg := secrets.ConfigFromEnv()
	if os.Getenv("ALERTCONV_SECRETS_BACKEND") == "" && cfg.Secrets.Backend != "" {
		secretsCfg.Backend = cfg.Secrets.Backend
	}
	if secretsCfg.OnePasswordVault == "" {
		secretsCfg.OnePasswordVault = cfg.Secrets.OPVault
	}
	resolver, err := secrets.NewResolver(secretsCfg, logger)
	if err != nil {
		return err
	}
	defer resolver.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.Database.URL == "" {
		url, err := resolver.Resolve(ctx, secrets.SecretDatabaseURL)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", secrets.SecretDatabaseURL, err)
		}
		cfg.Database.URL = url
	}
	if cfg.Redis.URL == "" {
		url, err := resolver.Resolve(ctx, secrets.SecretRedisURL)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", secrets.SecretRedisURL, err)
		}
		cfg.Redis.URL = url
	}
	return nil
}
