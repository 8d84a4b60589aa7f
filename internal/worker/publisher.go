// Package worker - Publisher re-publishes converged alerts downstream
//
// The publisher wakes on an interval read from the push configuration row,
// collects converged alerts created inside the window that have no push log
// yet, and delivers them as a single JSON array on the outbound stream. Push
// logs are written only after delivery succeeds, so a crash between the two
// re-publishes the window on the next cycle (at-least-once, downstream
// dedupes on converged ID).
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/metrics"
	"github.com/quillsec/alertconv/pkg/types"
)

// PublisherStore is the slice of the store the publisher needs.
type PublisherStore interface {
	GetPushConfig(ctx context.Context) (*types.PushConfig, error)
	ListUnpublishedNetworkAttacks(ctx context.Context, since time.Time) ([]*types.ConvergedNetworkAttack, error)
	ListUnpublishedMaliciousSamples(ctx context.Context, since time.Time) ([]*types.ConvergedMaliciousSample, error)
	ListUnpublishedHostBehaviors(ctx context.Context, since time.Time) ([]*types.ConvergedHostBehavior, error)
	InsertPushLogs(ctx context.Context, family types.AlertFamily, convergedIDs []uuid.UUID) error
}

// PublisherBus delivers an encoded batch to a stream.
type PublisherBus interface {
	Publish(ctx context.Context, stream string, payload []byte) error
}

// PublisherConfig holds configuration for the publisher.
type PublisherConfig struct {
	// Stream is the outbound stream batches are appended to.
	Stream string

	// DeliveryTimeout bounds a single batch delivery.
	DeliveryTimeout time.Duration

	// IdleSleep is how long to wait before re-reading the push config
	// when publishing is disabled or the config cannot be read.
	IdleSleep time.Duration
}

// DefaultPublisherConfig returns sensible defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Stream:          "alerts.converged",
		DeliveryTimeout: config.PublishDeliveryTimeout,
		IdleSleep:       config.PublisherIdleSleep,
	}
}

// Publisher periodically re-publishes converged alerts downstream.
type Publisher struct {
	store    PublisherStore
	bus      PublisherBus
	counters *metrics.PipelineCounters
	config   PublisherConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPublisher creates a publisher. counters may be nil.
func NewPublisher(
	store PublisherStore,
	bus PublisherBus,
	counters *metrics.PipelineCounters,
	config PublisherConfig,
	logger *slog.Logger,
) *Publisher {
	return &Publisher{
		store:    store,
		bus:      bus,
		counters: counters,
		config:   config,
		logger:   logger.With("component", "publisher"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the publish loop in a goroutine.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals the loop to stop and waits for it to exit.
func (p *Publisher) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()

	p.logger.Info("publisher started",
		"stream", p.config.Stream,
		"delivery_timeout", p.config.DeliveryTimeout,
	)

	for {
		sleep := p.cycle(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("publisher stopping (context cancelled)")
			return
		case <-p.stopCh:
			p.logger.Info("publisher stopping (stop signal)")
			return
		case <-time.After(sleep):
		}
	}
}

// cycle runs one iteration and returns how long to sleep before the next.
// The push config is re-read every cycle so operator changes take effect
// without a restart.
func (p *Publisher) cycle(ctx context.Context) time.Duration {
	cfg, err := p.store.GetPushConfig(ctx)
	if err != nil {
		p.logger.Error("failed to read push config", "error", err)
		return p.config.IdleSleep
	}
	if cfg == nil || !cfg.Enabled {
		return p.config.IdleSleep
	}

	count, err := p.PublishWindow(ctx, cfg.WindowMinutes)
	if err != nil {
		p.logger.Error("publish cycle failed", "error", err)
	} else if count > 0 && p.counters != nil {
		p.counters.Published.Add(int64(count))
	}

	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = p.config.IdleSleep
	}
	return interval
}

// PublishWindow collects converged alerts created in the last windowMinutes
// that have not been pushed yet and delivers them as one JSON array. Returns
// the number of alerts delivered; an empty window sends nothing. Also
// invoked directly by the manual publish endpoint.
func (p *Publisher) PublishWindow(ctx context.Context, windowMinutes int32) (int, error) {
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

	attacks, err := p.store.ListUnpublishedNetworkAttacks(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing unpublished network attacks: %w", err)
	}
	samples, err := p.store.ListUnpublishedMaliciousSamples(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing unpublished malicious samples: %w", err)
	}
	behaviors, err := p.store.ListUnpublishedHostBehaviors(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing unpublished host behaviors: %w", err)
	}

	now := time.Now().UnixMilli()
	batch := make([]any, 0, len(attacks)+len(samples)+len(behaviors))
	naIDs := make([]uuid.UUID, 0, len(attacks))
	msIDs := make([]uuid.UUID, 0, len(samples))
	hbIDs := make([]uuid.UUID, 0, len(behaviors))

	for _, r := range attacks {
		batch = append(batch, networkAttackPayload(r, now))
		naIDs = append(naIDs, r.ID)
	}
	for _, r := range samples {
		batch = append(batch, maliciousSamplePayload(r, now))
		msIDs = append(msIDs, r.ID)
	}
	for _, r := range behaviors {
		batch = append(batch, hostBehaviorPayload(r, now))
		hbIDs = append(hbIDs, r.ID)
	}

	if len(batch) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("encoding outbound batch: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, p.config.DeliveryTimeout)
	defer cancel()
	if err := p.bus.Publish(dctx, p.config.Stream, payload); err != nil {
		return 0, fmt.Errorf("delivering outbound batch: %w", err)
	}

	// Bookkeeping after delivery. A failure here re-publishes the window
	// next cycle rather than losing alerts.
	if err := p.logPushed(ctx, types.FamilyNetworkAttack, naIDs); err != nil {
		return 0, err
	}
	if err := p.logPushed(ctx, types.FamilyMaliciousSample, msIDs); err != nil {
		return 0, err
	}
	if err := p.logPushed(ctx, types.FamilyHostBehavior, hbIDs); err != nil {
		return 0, err
	}

	p.logger.Info("published converged batch",
		"count", len(batch),
		"network_attack", len(naIDs),
		"malicious_sample", len(msIDs),
		"host_behavior", len(hbIDs),
	)
	return len(batch), nil
}

func (p *Publisher) logPushed(ctx context.Context, family types.AlertFamily, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.store.InsertPushLogs(ctx, family, ids); err != nil {
		return fmt.Errorf("recording push logs for %s: %w", family, err)
	}
	return nil
}
