// Package types defines the core domain types shared between the ingest
// pipeline, the stores, the publisher, and the admin API.
//
// # Design Principles
//
// 1. Simplicity: Types mirror the wire format and the table rows directly
// 2. Serialization: All types are JSON-serializable for API transport
// 3. Nullability: Optional columns are pointers; required columns are values
// 4. Validation: Required-field checks happen at ingest, before typed decode
package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// ALERT FAMILIES
// =============================================================================

// AlertFamily identifies one of the three alert classes moving through the
// pipeline. The numeric values appear on the wire (alarm_type), in every
// table, and in push logs.
type AlertFamily int16

const (
	// FamilyNetworkAttack - traffic-level detections (scans, exploits, C2)
	FamilyNetworkAttack AlertFamily = 1
	// FamilyMaliciousSample - file/sample verdicts (trojans, ransomware, miners)
	FamilyMaliciousSample AlertFamily = 2
	// FamilyHostBehavior - endpoint activity (processes, registry, lateral movement)
	FamilyHostBehavior AlertFamily = 3
)

// Families lists the three alert families in publish order.
var Families = []AlertFamily{FamilyNetworkAttack, FamilyMaliciousSample, FamilyHostBehavior}

// String returns the snake_case family word used in stream names and in the
// invalid_alerts.alert_type column.
func (f AlertFamily) String() string {
	switch f {
	case FamilyNetworkAttack:
		return "network_attack"
	case FamilyMaliciousSample:
		return "malicious_sample"
	case FamilyHostBehavior:
		return "host_behavior"
	default:
		return fmt.Sprintf("unknown(%d)", int16(f))
	}
}

// DisplayName returns the operator-facing name shown in push logs.
func (f AlertFamily) DisplayName() string {
	switch f {
	case FamilyNetworkAttack:
		return "网络攻击"
	case FamilyMaliciousSample:
		return "恶意样本"
	case FamilyHostBehavior:
		return "主机行为"
	default:
		return "未知"
	}
}

// Valid reports whether f is one of the three known families.
func (f AlertFamily) Valid() bool {
	return f == FamilyNetworkAttack || f == FamilyMaliciousSample || f == FamilyHostBehavior
}

// FamilyFromStream resolves an inbound stream name to its alert family by
// the final dot-separated segment, e.g. "alerts.prod.network_attack".
func FamilyFromStream(stream string) (AlertFamily, error) {
	seg := stream
	if i := strings.LastIndex(stream, "."); i >= 0 {
		seg = stream[i+1:]
	}
	switch seg {
	case "network_attack":
		return FamilyNetworkAttack, nil
	case "malicious_sample":
		return FamilyMaliciousSample, nil
	case "host_behavior":
		return FamilyHostBehavior, nil
	default:
		return 0, fmt.Errorf("stream %q does not map to an alert family", stream)
	}
}

// =============================================================================
// EPOCH HANDLING
// =============================================================================

// epochMillisFloor separates second-resolution epochs from millisecond ones.
// Anything below it is treated as seconds. (10_000_000_000 seconds is year
// 2286, 10_000_000_000 millis is November 2001.)
const epochMillisFloor = 10_000_000_000

// EnsureMillis normalizes an epoch timestamp to milliseconds. Producers are
// inconsistent about resolution, so second-resolution values are scaled up.
func EnsureMillis(ts int64) int64 {
	if ts < epochMillisFloor {
		return ts * 1000
	}
	return ts
}

// EnsureMillisPtr applies EnsureMillis through an optional field.
func EnsureMillisPtr(ts *int64) *int64 {
	if ts == nil {
		return nil
	}
	v := EnsureMillis(*ts)
	return &v
}
