// Package metrics keeps the pipeline throughput counters and assembles the
// process runtime snapshot served at /api/v1/ops/runtime.
package metrics

import "sync/atomic"

// PipelineCounters tracks message outcomes across the ingest pipeline and
// the publisher. All fields are safe for concurrent update.
type PipelineCounters struct {
	Consumed        atomic.Int64
	Invalid         atomic.Int64
	Filtered        atomic.Int64
	Stored          atomic.Int64
	ConvergedNew    atomic.Int64
	ConvergedMerged atomic.Int64
	Tagged          atomic.Int64
	Published       atomic.Int64
}

// CounterSnapshot is a point-in-time copy of the pipeline counters.
type CounterSnapshot struct {
	Consumed        int64 `json:"consumed"`
	Invalid         int64 `json:"invalid"`
	Filtered        int64 `json:"filtered"`
	Stored          int64 `json:"stored"`
	ConvergedNew    int64 `json:"converged_new"`
	ConvergedMerged int64 `json:"converged_merged"`
	Tagged          int64 `json:"tagged"`
	Published       int64 `json:"published"`
}

// Snapshot copies the current counter values.
func (p *PipelineCounters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Consumed:        p.Consumed.Load(),
		Invalid:         p.Invalid.Load(),
		Filtered:        p.Filtered.Load(),
		Stored:          p.Stored.Load(),
		ConvergedNew:    p.ConvergedNew.Load(),
		ConvergedMerged: p.ConvergedMerged.Load(),
		Tagged:          p.Tagged.Load(),
		Published:       p.Published.Load(),
	}
}
