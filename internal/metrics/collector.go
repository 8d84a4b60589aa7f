package metrics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/quillsec/alertconv/internal/store"
)

// PoolStats describes the database connection pool at snapshot time.
type PoolStats struct {
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	TotalConns    int32 `json:"total_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// RuntimeSnapshot is the process and pipeline view served by the ops API.
type RuntimeSnapshot struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Goroutines    int             `json:"goroutines"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryMB      float64         `json:"memory_mb"`
	MemoryPercent float64         `json:"memory_percent"`
	Database      PoolStats       `json:"database"`
	Pipeline      CounterSnapshot `json:"pipeline"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Collector gathers runtime metrics with caching.
type Collector struct {
	store    *store.Store
	counters *PipelineCounters

	startTime time.Time

	// Cached snapshot with TTL
	mu            sync.RWMutex
	cached        *RuntimeSnapshot
	cacheExpiry   time.Time
	cacheDuration time.Duration
}

// NewCollector creates a new metrics collector.
func NewCollector(store *store.Store, counters *PipelineCounters) *Collector {
	return &Collector{
		store:         store,
		counters:      counters,
		startTime:     time.Now(),
		cacheDuration: 30 * time.Second,
	}
}

// Runtime returns the current process and pipeline snapshot. Process
// metrics are cached for 30 seconds; the pipeline counters are always
// read fresh.
func (c *Collector) Runtime() *RuntimeSnapshot {
	c.mu.RLock()
	if c.cached != nil && time.Now().Before(c.cacheExpiry) {
		snap := *c.cached
		c.mu.RUnlock()
		snap.Pipeline = c.counters.Snapshot()
		return &snap
	}
	c.mu.RUnlock()

	snap := c.collect()

	c.mu.Lock()
	c.cached = snap
	c.cacheExpiry = time.Now().Add(c.cacheDuration)
	c.mu.Unlock()

	out := *snap
	out.Pipeline = c.counters.Snapshot()
	return &out
}

func (c *Collector) collect() *RuntimeSnapshot {
	snap := &RuntimeSnapshot{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Timestamp:     time.Now(),
	}

	// Process metrics via gopsutil; failures leave zero values.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			snap.MemoryMB = float64(mem.RSS) / (1024 * 1024)
		}
		if memPct, err := proc.MemoryPercent(); err == nil {
			snap.MemoryPercent = float64(memPct)
		}
	}

	if c.store != nil {
		stat := c.store.Pool().Stat()
		snap.Database = PoolStats{
			AcquiredConns: stat.AcquiredConns(),
			IdleConns:     stat.IdleConns(),
			TotalConns:    stat.TotalConns(),
			MaxConns:      stat.MaxConns(),
		}
	}

	if snap.MemoryPercent > 90 || snap.CPUPercent > 90 {
		snap.Status = "degraded"
	}

	return snap
}
