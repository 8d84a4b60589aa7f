// Package config - shared constants.
//
// This file centralizes hardcoded values that would otherwise be scattered
// throughout the codebase, making them easier to find, modify, and test.
package config

import "time"

// Ingest pipeline defaults.
const (
	// DefaultIngestConcurrency bounds in-flight messages per stream reader.
	DefaultIngestConcurrency = 8

	// IngestReadBlock is how long a stream read blocks waiting for new
	// messages before the reader checks for shutdown.
	IngestReadBlock = 5 * time.Second

	// IngestReadCount is the maximum messages claimed per stream read.
	IngestReadCount = 64
)

// Publisher timing.
const (
	// PublishDeliveryTimeout bounds one outbound batch delivery.
	PublishDeliveryTimeout = 3 * time.Second

	// PublisherIdleSleep is how long the publisher waits before re-reading
	// its config when publishing is disabled or the config read failed.
	PublisherIdleSleep = 60 * time.Second
)

// Pagination defaults for API list endpoints.
const (
	// DefaultPageSize is the number of items returned when no page_size is
	// specified.
	DefaultPageSize = 20

	// MaxPageSize is the largest page_size a single API call may request.
	MaxPageSize = 500
)

// HTTP server timeouts.
const (
	HTTPReadTimeout  = 30 * time.Second
	HTTPWriteTimeout = 30 * time.Second
	HTTPIdleTimeout  = 120 * time.Second

	// ShutdownTimeout bounds graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout = 10 * time.Second
)

// Cache TTLs for API response caching.
const (
	// CacheTTLStatsOverview is the TTL for the stats overview endpoint.
	CacheTTLStatsOverview = 30 * time.Second
)

// Database timeouts.
const (
	// DBPingTimeout bounds the startup connectivity check.
	DBPingTimeout = 10 * time.Second
)
