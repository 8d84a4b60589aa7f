// Command alertgen publishes mock alerts to the inbound streams and seeds
// demo data into the database.
//
// # Usage
//
// Publish ten alerts of each family, two seconds apart:
//
//	alertgen -redis redis://localhost:6379/0 -count 10 -interval 2s
//
// Publish network attacks until interrupted:
//
//	alertgen -type network_attack -count 0
//
// Seed the tag dictionary, demo rules, and threat events:
//
//	alertgen -database postgres://localhost/alertconv \
//	         -seed-tags -seed-rules -seed-events
//
// Connection URLs fall back to ALERTCONV_REDIS_URL and
// ALERTCONV_DATABASE_URL, then to the config file defaults.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillsec/alertconv/internal/bus"
	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/mockgen"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/pkg/types"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file")
		redisURL   = flag.String("redis", "", "Redis URL (redis://...)")
		dbURL      = flag.String("database", "", "Database URL (postgres://...), required for seeding")
		alertType  = flag.String("type", "all", "Family to generate: network_attack, malicious_sample, host_behavior, or all")
		count      = flag.Int("count", 10, "Alerts per family (0 = run until interrupted)")
		interval   = flag.Duration("interval", 2*time.Second, "Delay between rounds")
		seed       = flag.Int64("seed", 0, "Random seed (0 = time-based)")
		seedTags   = flag.Bool("seed-tags", false, "Insert the standard tag dictionary and exit")
		seedEvents = flag.Bool("seed-events", false, "Insert demo threat events and exit")
		seedRules  = flag.Bool("seed-rules", false, "Insert demo rules and exit")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		version    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("alertgen v0.1.0")
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
	if *redisURL != "" {
		cfg.Redis.URL = *redisURL
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Seeding mode: write demo rows and exit.
	if *seedTags || *seedEvents || *seedRules {
		if cfg.Database.URL == "" {
			logger.Error("seeding requires -database or ALERTCONV_DATABASE_URL")
			os.Exit(1)
		}
		connectCtx, connectCancel := context.WithTimeout(ctx, config.DBPingTimeout)
		st, err := store.NewStoreFromURL(connectCtx, cfg.Database.URL)
		connectCancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := runSeeds(ctx, st, *seedTags, *seedEvents, *seedRules, logger); err != nil {
			logger.Error("seeding failed", "error", err)
			os.Exit(1)
		}
		return
	}

	families, err := familiesFor(*alertType)
	if err != nil {
		logger.Error("invalid -type", "error", err)
		os.Exit(1)
	}
	streams := streamsByFamily(cfg.Ingest.Streams)
	for _, family := range families {
		if _, ok := streams[family]; !ok {
			logger.Error("no inbound stream configured for family", "family", family.String())
			os.Exit(1)
		}
	}

	producer, err := bus.NewProducer(cfg.Redis.URL, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	seedValue := *seed
	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}
	gen := mockgen.New(seedValue)

	logger.Info("starting alert generator",
		"type", *alertType,
		"count", *count,
		"interval", *interval,
		"seed", seedValue)

	sent := publish(ctx, gen, producer, streams, families, *count, *interval, logger)
	logger.Info("alert generation finished", "sent", sent)
}

// publish sends count rounds of one alert per family, interval apart.
// count 0 runs until the context is canceled. Returns alerts sent.
func publish(ctx context.Context, gen *mockgen.Generator, producer *bus.Producer,
	streams map[types.AlertFamily]string, families []types.AlertFamily,
	count int, interval time.Duration, logger *slog.Logger) int {

	sent := 0
	for round := 0; count == 0 || round < count; round++ {
		for _, family := range families {
			msg := gen.ByFamily(family)
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Error("marshal alert", "error", err)
				continue
			}
			if err := producer.Publish(ctx, streams[family], payload); err != nil {
				if ctx.Err() != nil {
					return sent
				}
				logger.Error("publish failed",
					"stream", streams[family],
					"error", err)
				continue
			}
			sent++
			logger.Debug("published alert",
				"stream", streams[family],
				"alarm_id", msg["alarm_id"],
				"alarm_name", msg["alarm_name"])
		}
		select {
		case <-ctx.Done():
			return sent
		case <-time.After(interval):
		}
	}
	return sent
}

// =============================================================================
// SEEDING
// =============================================================================

func runSeeds(ctx context.Context, st *store.Store, tags, events, rules bool, logger *slog.Logger) error {
	if tags {
		inserted, skipped := 0, 0
		for _, tg := range mockgen.Tags() {
			err := st.CreateTag(ctx, &tg)
			switch {
			case errors.Is(err, store.ErrDuplicateTag):
				skipped++
			case err != nil:
				return fmt.Errorf("create tag %q: %w", tg.Name, err)
			default:
				inserted++
			}
		}
		logger.Info("seeded tag dictionary", "inserted", inserted, "skipped", skipped)
	}

	if rules {
		for _, r := range mockgen.FilterRules() {
			if err := st.CreateFilterRule(ctx, &r); err != nil {
				return fmt.Errorf("create filter rule %q: %w", r.Name, err)
			}
		}
		for _, r := range mockgen.TagRules() {
			if err := st.CreateTagRule(ctx, &r); err != nil {
				return fmt.Errorf("create tag rule %q: %w", r.Name, err)
			}
		}
		for _, r := range mockgen.ConvergenceRules() {
			if err := st.CreateConvergenceRule(ctx, &r); err != nil {
				return fmt.Errorf("create convergence rule %q: %w", r.Name, err)
			}
		}
		for _, r := range mockgen.CorrelationRules() {
			if err := st.CreateCorrelationRule(ctx, &r); err != nil {
				return fmt.Errorf("create correlation rule %q: %w", r.Name, err)
			}
		}
		logger.Info("seeded rules",
			"filter", len(mockgen.FilterRules()),
			"tag", len(mockgen.TagRules()),
			"convergence", len(mockgen.ConvergenceRules()),
			"correlation", len(mockgen.CorrelationRules()))
	}

	if events {
		for _, ev := range mockgen.ThreatEvents() {
			if err := st.InsertThreatEvent(ctx, &ev); err != nil {
				return fmt.Errorf("insert threat event %d: %w", *ev.EventID, err)
			}
		}
		logger.Info("seeded threat events", "count", len(mockgen.ThreatEvents()))
	}
	return nil
}

func familiesFor(word string) ([]types.AlertFamily, error) {
	switch word {
	case "all":
		return types.Families, nil
	case "network_attack":
		return []types.AlertFamily{types.FamilyNetworkAttack}, nil
	case "malicious_sample":
		return []types.AlertFamily{types.FamilyMaliciousSample}, nil
	case "host_behavior":
		return []types.AlertFamily{types.FamilyHostBehavior}, nil
	}
	return nil, fmt.Errorf("unknown alert type %q", word)
}

func streamsByFamily(streams []string) map[types.AlertFamily]string {
	m := make(map[types.AlertFamily]string, len(streams))
	for _, s := range streams {
		family, err := types.FamilyFromStream(s)
		if err != nil {
			continue
		}
		m[family] = s
	}
	return m
}
