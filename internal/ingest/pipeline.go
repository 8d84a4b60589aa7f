package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quillsec/alertconv/internal/bus"
	"github.com/quillsec/alertconv/internal/config"
	"github.com/quillsec/alertconv/internal/engine"
	"github.com/quillsec/alertconv/internal/metrics"
	"github.com/quillsec/alertconv/internal/store"
	"github.com/quillsec/alertconv/pkg/types"
)

// Store is the subset of store operations the pipeline writes through.
type Store interface {
	InsertInvalidAlert(ctx context.Context, data []byte, alertType, errMsg string) error
	InsertNetworkAttack(ctx context.Context, rec *types.NetworkAttackRecord) error
	InsertMaliciousSample(ctx context.Context, rec *types.MaliciousSampleRecord) error
	InsertHostBehavior(ctx context.Context, rec *types.HostBehaviorRecord) error
	ConvergeNetworkAttack(ctx context.Context, rec *types.NetworkAttackRecord, tagIDs []uuid.UUID) (*store.ConvergeResult, error)
	ConvergeMaliciousSample(ctx context.Context, rec *types.MaliciousSampleRecord, tagIDs []uuid.UUID) (*store.ConvergeResult, error)
	ConvergeHostBehavior(ctx context.Context, rec *types.HostBehaviorRecord, tagIDs []uuid.UUID) (*store.ConvergeResult, error)
}

// Bus is the stream surface the pipeline drains.
type Bus interface {
	Read(ctx context.Context, count int64, block time.Duration) ([]bus.Message, error)
	Ack(ctx context.Context, stream, id string) error
}

// PipelineConfig holds the pipeline tuning knobs.
type PipelineConfig struct {
	// Concurrency bounds in-flight message handlers.
	Concurrency int

	// RateLimit caps accepted messages per second. 0 disables the limiter.
	RateLimit float64

	// ReadCount is the maximum messages claimed per stream read.
	ReadCount int64

	// ReadBlock is how long a read waits before rechecking for shutdown.
	ReadBlock time.Duration
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Concurrency: config.DefaultIngestConcurrency,
		ReadCount:   config.IngestReadCount,
		ReadBlock:   config.IngestReadBlock,
	}
}

// Pipeline consumes the inbound streams and processes each alert to its
// terminal state: a converged row, or an invalid_alerts row. Messages are
// acknowledged once their content is durably stored; a message that could
// not be persisted at all stays pending for redelivery.
type Pipeline struct {
	store    Store
	bus      Bus
	engine   *engine.Engine
	assets   *Assets
	counters *metrics.PipelineCounters
	config   PipelineConfig
	logger   *slog.Logger
	stopCh   chan struct{}

	wg  sync.WaitGroup
	sem chan struct{}

	// nil when RateLimit is 0
	limiter *rate.Limiter
}

// NewPipeline creates a pipeline over an already-loaded rule set.
func NewPipeline(
	st Store,
	b Bus,
	assets *Assets,
	counters *metrics.PipelineCounters,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	return &Pipeline{
		store:    st,
		bus:      b,
		engine:   engine.New(logger),
		assets:   assets,
		counters: counters,
		config:   cfg,
		logger:   logger.With("component", "pipeline"),
		stopCh:   make(chan struct{}),
		sem:      make(chan struct{}, cfg.Concurrency),
		limiter:  limiter,
	}
}

// Start begins the pipeline in a goroutine.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals the pipeline to stop and waits for in-flight messages.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	p.logger.Info("ingest pipeline started",
		"concurrency", p.config.Concurrency,
		"rate_limit", p.config.RateLimit,
		"read_count", p.config.ReadCount,
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingest pipeline stopping (context cancelled)")
			return
		case <-p.stopCh:
			p.logger.Info("ingest pipeline stopping (stop signal)")
			return
		default:
		}

		msgs, err := p.bus.Read(ctx, p.config.ReadCount, p.config.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("stream read failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
			}

			p.sem <- struct{}{}
			p.wg.Add(1)
			go func(m bus.Message) {
				defer p.wg.Done()
				defer func() { <-p.sem }()
				p.process(ctx, m)
			}(msg)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, msg bus.Message) {
	p.counters.Consumed.Add(1)

	family, err := types.FamilyFromStream(msg.Stream)
	if err != nil {
		p.logger.Error("message on unknown stream", "stream", msg.Stream, "id", msg.ID)
		p.ack(ctx, msg)
		return
	}

	if p.handle(ctx, family, msg.Data) {
		p.ack(ctx, msg)
	}
}

func (p *Pipeline) ack(ctx context.Context, msg bus.Message) {
	if err := p.bus.Ack(ctx, msg.Stream, msg.ID); err != nil {
		p.logger.Error("ack failed", "stream", msg.Stream, "id", msg.ID, "error", err)
	}
}

// handle runs one message to its terminal state and reports whether it may
// be acknowledged. False means nothing was persisted and the message should
// stay pending.
func (p *Pipeline) handle(ctx context.Context, family types.AlertFamily, data []byte) bool {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		p.counters.Invalid.Add(1)
		return p.deadLetter(ctx, data, family, "malformed JSON: "+err.Error())
	}

	for _, key := range types.RequiredAlertKeys {
		if _, ok := msg[key]; !ok {
			p.counters.Invalid.Add(1)
			return p.deadLetter(ctx, data, family, "missing required key: "+key)
		}
	}

	switch family {
	case types.FamilyNetworkAttack:
		return p.handleNetworkAttack(ctx, data, msg)
	case types.FamilyMaliciousSample:
		return p.handleMaliciousSample(ctx, data, msg)
	case types.FamilyHostBehavior:
		return p.handleHostBehavior(ctx, data, msg)
	default:
		p.logger.Error("unhandled alert family", "family", int16(family))
		return true
	}
}

func (p *Pipeline) handleNetworkAttack(ctx context.Context, data []byte, msg map[string]any) bool {
	var rec types.NetworkAttackRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		p.counters.Invalid.Add(1)
		return p.deadLetter(ctx, data, types.FamilyNetworkAttack, "decoding network attack: "+err.Error())
	}
	rec.AlarmDate = types.EnsureMillisPtr(rec.AlarmDate)
	rec.Data = data

	if p.filtered(types.FamilyNetworkAttack, msg) {
		return p.deadLetter(ctx, data, types.FamilyNetworkAttack, types.FilteredReason)
	}

	if err := p.store.InsertNetworkAttack(ctx, &rec); err != nil {
		p.logger.Error("inserting network attack", "error", err)
		return false
	}
	p.counters.Stored.Add(1)

	tagIDs := p.matchTags(types.FamilyNetworkAttack, msg)
	res, err := p.store.ConvergeNetworkAttack(ctx, &rec, tagIDs)
	if err != nil {
		p.logger.Error("converging network attack", "alert_id", rec.ID, "error", err)
		return true
	}
	p.observeConvergence(types.FamilyNetworkAttack, res, tagIDs)
	return true
}

func (p *Pipeline) handleMaliciousSample(ctx context.Context, data []byte, msg map[string]any) bool {
	var rec types.MaliciousSampleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		p.counters.Invalid.Add(1)
		return p.deadLetter(ctx, data, types.FamilyMaliciousSample, "decoding malicious sample: "+err.Error())
	}
	rec.AlarmDate = types.EnsureMillisPtr(rec.AlarmDate)
	rec.CompileDate = types.EnsureMillisPtr(rec.CompileDate)
	rec.LastAnalyDate = types.EnsureMillisPtr(rec.LastAnalyDate)
	rec.Data = data

	if p.filtered(types.FamilyMaliciousSample, msg) {
		return p.deadLetter(ctx, data, types.FamilyMaliciousSample, types.FilteredReason)
	}

	if err := p.store.InsertMaliciousSample(ctx, &rec); err != nil {
		p.logger.Error("inserting malicious sample", "error", err)
		return false
	}
	p.counters.Stored.Add(1)

	tagIDs := p.matchTags(types.FamilyMaliciousSample, msg)
	res, err := p.store.ConvergeMaliciousSample(ctx, &rec, tagIDs)
	if err != nil {
		p.logger.Error("converging malicious sample", "alert_id", rec.ID, "error", err)
		return true
	}
	p.observeConvergence(types.FamilyMaliciousSample, res, tagIDs)
	return true
}

func (p *Pipeline) handleHostBehavior(ctx context.Context, data []byte, msg map[string]any) bool {
	var rec types.HostBehaviorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		p.counters.Invalid.Add(1)
		return p.deadLetter(ctx, data, types.FamilyHostBehavior, "decoding host behavior: "+err.Error())
	}
	rec.AlarmDate = types.EnsureMillisPtr(rec.AlarmDate)
	rec.Data = data

	if p.filtered(types.FamilyHostBehavior, msg) {
		return p.deadLetter(ctx, data, types.FamilyHostBehavior, types.FilteredReason)
	}

	if err := p.store.InsertHostBehavior(ctx, &rec); err != nil {
		p.logger.Error("inserting host behavior", "error", err)
		return false
	}
	p.counters.Stored.Add(1)

	tagIDs := p.matchTags(types.FamilyHostBehavior, msg)
	res, err := p.store.ConvergeHostBehavior(ctx, &rec, tagIDs)
	if err != nil {
		p.logger.Error("converging host behavior", "alert_id", rec.ID, "error", err)
		return true
	}
	p.observeConvergence(types.FamilyHostBehavior, res, tagIDs)
	return true
}

// filtered reports whether a filter rule drops this message.
func (p *Pipeline) filtered(family types.AlertFamily, msg map[string]any) bool {
	rule := p.engine.Filter(p.assets.FilterRules, family, msg)
	if rule == nil {
		return false
	}
	p.counters.Filtered.Add(1)
	p.logger.Debug("alert dropped by filter rule",
		"family", family.String(),
		"rule", rule.Name,
	)
	return true
}

func (p *Pipeline) matchTags(family types.AlertFamily, msg map[string]any) []uuid.UUID {
	names := p.engine.EvaluateTags(p.assets.TagRules, family, msg)
	return p.assets.ResolveTagIDs(names)
}

func (p *Pipeline) observeConvergence(family types.AlertFamily, res *store.ConvergeResult, tagIDs []uuid.UUID) {
	if res.IsNew {
		p.counters.ConvergedNew.Add(1)
	} else {
		p.counters.ConvergedMerged.Add(1)
	}
	if len(tagIDs) > 0 {
		p.counters.Tagged.Add(1)
	}
	p.logger.Debug("alert converged",
		"family", family.String(),
		"converged_id", res.ConvergedID,
		"new", res.IsNew,
		"count", res.Count,
		"tags", len(tagIDs),
	)
}

// deadLetter records the message in invalid_alerts. The message may be
// acknowledged only if the row was written.
func (p *Pipeline) deadLetter(ctx context.Context, data []byte, family types.AlertFamily, reason string) bool {
	if err := p.store.InsertInvalidAlert(ctx, data, family.String(), reason); err != nil {
		p.logger.Error("inserting invalid alert", "family", family.String(), "error", err)
		return false
	}
	return true
}
