package store

import (
	"context"
	"time"
)

// FamilyOverview pairs the raw and converged totals for one alert family.
type FamilyOverview struct {
	Raw       int64 `json:"raw"`
	Converged int64 `json:"converged"`
}

// Overview is the stats snapshot served by the overview endpoint.
type Overview struct {
	NetworkAttack    FamilyOverview `json:"network_attack"`
	MaliciousSample  FamilyOverview `json:"malicious_sample"`
	HostBehavior     FamilyOverview `json:"host_behavior"`
	InvalidAlerts    int64          `json:"invalid_alerts"`
	PublishedLast24h int64          `json:"published_last_24h"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// StatsOverview gathers the totals in one pass. Callers cache the result;
// the counts are full table scans on the raw tables.
func (s *Store) StatsOverview(ctx context.Context) (*Overview, error) {
	var o Overview
	queries := []struct {
		sql  string
		dest *int64
	}{
		{`SELECT COUNT(*) FROM network_attack_alerts`, &o.NetworkAttack.Raw},
		{`SELECT COUNT(*) FROM converged_network_attack_alerts`, &o.NetworkAttack.Converged},
		{`SELECT COUNT(*) FROM malicious_sample_alerts`, &o.MaliciousSample.Raw},
		{`SELECT COUNT(*) FROM converged_malicious_sample_alerts`, &o.MaliciousSample.Converged},
		{`SELECT COUNT(*) FROM host_behavior_alerts`, &o.HostBehavior.Raw},
		{`SELECT COUNT(*) FROM converged_host_behavior_alerts`, &o.HostBehavior.Converged},
		{`SELECT COUNT(*) FROM invalid_alerts`, &o.InvalidAlerts},
		{`SELECT COUNT(*) FROM converged_push_logs WHERE pushed_at >= now() - interval '24 hours'`, &o.PublishedLast24h},
	}
	for _, q := range queries {
		if err := s.pool.QueryRow(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	o.GeneratedAt = time.Now().UTC()
	return &o, nil
}
