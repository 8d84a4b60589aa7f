package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/internal/metrics"
	"github.com/quillsec/alertconv/internal/testutil"
	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// FAKES
// =============================================================================

type fakePublisherStore struct {
	mu sync.Mutex

	cfg     *types.PushConfig
	cfgErr  error
	cfgGets int

	attacks   []*types.ConvergedNetworkAttack
	samples   []*types.ConvergedMaliciousSample
	behaviors []*types.ConvergedHostBehavior
	listErr   error
	listGets  int
	sinceSeen []time.Time

	pushLogs map[types.AlertFamily][]uuid.UUID
	logErr   error
}

func newFakePublisherStore() *fakePublisherStore {
	return &fakePublisherStore{
		pushLogs: make(map[types.AlertFamily][]uuid.UUID),
	}
}

func (f *fakePublisherStore) GetPushConfig(ctx context.Context) (*types.PushConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgGets++
	if f.cfgErr != nil {
		return nil, f.cfgErr
	}
	return f.cfg, nil
}

func (f *fakePublisherStore) ListUnpublishedNetworkAttacks(ctx context.Context, since time.Time) ([]*types.ConvergedNetworkAttack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listGets++
	f.sinceSeen = append(f.sinceSeen, since)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.attacks, nil
}

func (f *fakePublisherStore) ListUnpublishedMaliciousSamples(ctx context.Context, since time.Time) ([]*types.ConvergedMaliciousSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listGets++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.samples, nil
}

func (f *fakePublisherStore) ListUnpublishedHostBehaviors(ctx context.Context, since time.Time) ([]*types.ConvergedHostBehavior, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listGets++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.behaviors, nil
}

func (f *fakePublisherStore) InsertPushLogs(ctx context.Context, family types.AlertFamily, convergedIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	f.pushLogs[family] = append(f.pushLogs[family], convergedIDs...)
	return nil
}

func (f *fakePublisherStore) configReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfgGets
}

type fakePublisherBus struct {
	mu        sync.Mutex
	err       error
	streams   []string
	published [][]byte
}

func (f *fakePublisherBus) Publish(ctx context.Context, stream string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.streams = append(f.streams, stream)
	f.published = append(f.published, payload)
	return nil
}

func (f *fakePublisherBus) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func newTestPublisher(fs *fakePublisherStore, fb *fakePublisherBus, counters *metrics.PipelineCounters) *Publisher {
	cfg := DefaultPublisherConfig()
	cfg.IdleSleep = 10 * time.Millisecond
	return NewPublisher(fs, fb, counters, cfg, testutil.NewTestLogger())
}

// =============================================================================
// PUBLISH WINDOW
// =============================================================================

func TestPublishWindowEmpty(t *testing.T) {
	fs := newFakePublisherStore()
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	count, err := p.PublishWindow(context.Background(), 5)
	if err != nil {
		t.Fatalf("PublishWindow: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if fb.publishCount() != 0 {
		t.Error("empty window must not deliver a message")
	}
	if len(fs.pushLogs) != 0 {
		t.Error("empty window must not record push logs")
	}
}

func TestPublishWindowSingleBatch(t *testing.T) {
	fs := newFakePublisherStore()
	fs.attacks = []*types.ConvergedNetworkAttack{
		testutil.FixtureConvergedNetworkAttack(),
		testutil.FixtureConvergedNetworkAttack(),
	}
	fs.samples = []*types.ConvergedMaliciousSample{testutil.FixtureConvergedMaliciousSample()}
	fs.behaviors = []*types.ConvergedHostBehavior{testutil.FixtureConvergedHostBehavior()}
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	count, err := p.PublishWindow(context.Background(), 5)
	if err != nil {
		t.Fatalf("PublishWindow: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
	if fb.publishCount() != 1 {
		t.Fatalf("deliveries = %d, want one batch", fb.publishCount())
	}
	if fb.streams[0] != p.config.Stream {
		t.Errorf("stream = %q, want %q", fb.streams[0], p.config.Stream)
	}

	var docs []map[string]json.RawMessage
	if err := json.Unmarshal(fb.published[0], &docs); err != nil {
		t.Fatalf("batch is not a JSON array: %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("batch length = %d, want 4", len(docs))
	}
	wantModels := []string{`"ALM_STR_NA"`, `"ALM_STR_NA"`, `"ALM_STR_MS"`, `"ALM_CLU_ACT"`}
	for i, want := range wantModels {
		if got := string(docs[i]["modelType"]); got != want {
			t.Errorf("docs[%d].modelType = %s, want %s", i, got, want)
		}
	}

	if got := fs.pushLogs[types.FamilyNetworkAttack]; len(got) != 2 {
		t.Errorf("network attack push logs = %d, want 2", len(got))
	}
	if got := fs.pushLogs[types.FamilyMaliciousSample]; len(got) != 1 || got[0] != fs.samples[0].ID {
		t.Errorf("malicious sample push logs = %v", got)
	}
	if got := fs.pushLogs[types.FamilyHostBehavior]; len(got) != 1 || got[0] != fs.behaviors[0].ID {
		t.Errorf("host behavior push logs = %v", got)
	}
}

func TestPublishWindowSinceBound(t *testing.T) {
	fs := newFakePublisherStore()
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	before := time.Now()
	if _, err := p.PublishWindow(context.Background(), 5); err != nil {
		t.Fatalf("PublishWindow: %v", err)
	}
	after := time.Now()

	if len(fs.sinceSeen) != 1 {
		t.Fatalf("sinceSeen = %d entries, want 1", len(fs.sinceSeen))
	}
	since := fs.sinceSeen[0]
	if since.Before(before.Add(-5*time.Minute)) || since.After(after.Add(-5*time.Minute)) {
		t.Errorf("since = %v, want five minutes before now", since)
	}
}

func TestPublishWindowListFailure(t *testing.T) {
	fs := newFakePublisherStore()
	fs.listErr = errors.New("db down")
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	if _, err := p.PublishWindow(context.Background(), 5); err == nil {
		t.Fatal("expected error")
	}
	if fb.publishCount() != 0 {
		t.Error("failed listing must not deliver")
	}
}

func TestPublishWindowDeliveryFailureSkipsLogs(t *testing.T) {
	fs := newFakePublisherStore()
	fs.attacks = []*types.ConvergedNetworkAttack{testutil.FixtureConvergedNetworkAttack()}
	fb := &fakePublisherBus{err: errors.New("stream unavailable")}
	p := newTestPublisher(fs, fb, nil)

	_, err := p.PublishWindow(context.Background(), 5)
	if err == nil || !strings.Contains(err.Error(), "delivering outbound batch") {
		t.Fatalf("err = %v, want delivery failure", err)
	}
	if len(fs.pushLogs) != 0 {
		t.Error("push logs must only be written after delivery succeeds")
	}
}

func TestPublishWindowLogFailureAfterDelivery(t *testing.T) {
	fs := newFakePublisherStore()
	fs.attacks = []*types.ConvergedNetworkAttack{testutil.FixtureConvergedNetworkAttack()}
	fs.logErr = errors.New("insert failed")
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	_, err := p.PublishWindow(context.Background(), 5)
	if err == nil || !strings.Contains(err.Error(), "recording push logs") {
		t.Fatalf("err = %v, want push log failure", err)
	}
	if fb.publishCount() != 1 {
		t.Error("delivery should have happened before the log failure")
	}
}

// =============================================================================
// CYCLE
// =============================================================================

func TestCycleDisabledConfig(t *testing.T) {
	fs := newFakePublisherStore()
	fs.cfg = testutil.FixturePushConfig(func(c *types.PushConfig) { c.Enabled = false })
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	sleep := p.cycle(context.Background())
	if sleep != p.config.IdleSleep {
		t.Errorf("sleep = %v, want idle sleep %v", sleep, p.config.IdleSleep)
	}
	if fs.listGets != 0 {
		t.Error("disabled config must not query unpublished alerts")
	}
}

func TestCycleConfigError(t *testing.T) {
	fs := newFakePublisherStore()
	fs.cfgErr = errors.New("db down")
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	if sleep := p.cycle(context.Background()); sleep != p.config.IdleSleep {
		t.Errorf("sleep = %v, want idle sleep", sleep)
	}
}

func TestCycleMissingConfig(t *testing.T) {
	fs := newFakePublisherStore()
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	if sleep := p.cycle(context.Background()); sleep != p.config.IdleSleep {
		t.Errorf("sleep = %v, want idle sleep", sleep)
	}
}

func TestCycleEnabledPublishesAndSleepsInterval(t *testing.T) {
	fs := newFakePublisherStore()
	fs.cfg = testutil.FixturePushConfig(func(c *types.PushConfig) {
		c.IntervalSeconds = 120
	})
	fs.attacks = []*types.ConvergedNetworkAttack{testutil.FixtureConvergedNetworkAttack()}
	fb := &fakePublisherBus{}
	var counters metrics.PipelineCounters
	p := newTestPublisher(fs, fb, &counters)

	sleep := p.cycle(context.Background())
	if sleep != 120*time.Second {
		t.Errorf("sleep = %v, want 120s from config", sleep)
	}
	if fb.publishCount() != 1 {
		t.Error("enabled cycle should publish the window")
	}
	if got := counters.Published.Load(); got != 1 {
		t.Errorf("published counter = %d, want 1", got)
	}
}

func TestCycleZeroIntervalFallsBack(t *testing.T) {
	fs := newFakePublisherStore()
	fs.cfg = testutil.FixturePushConfig(func(c *types.PushConfig) {
		c.IntervalSeconds = 0
	})
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	if sleep := p.cycle(context.Background()); sleep != p.config.IdleSleep {
		t.Errorf("sleep = %v, want idle sleep for zero interval", sleep)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestPublisherStartStop(t *testing.T) {
	fs := newFakePublisherStore()
	fs.cfg = testutil.FixturePushConfig(func(c *types.PushConfig) { c.Enabled = false })
	fb := &fakePublisherBus{}
	p := newTestPublisher(fs, fb, nil)

	p.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for fs.configReads() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("publisher never cycled twice")
		}
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
