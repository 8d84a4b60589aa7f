// Package types - Rule and tag definitions
//
// # Rule Families
//
// Four rule kinds, each with its own table and CRUD surface:
//
//   - Filter rules drop alerts before they reach storage.
//   - Tag rules attach dictionary tags to converged alerts.
//   - Convergence rules hold CONVERGE statements in the rule DSL.
//   - Correlation rules hold CORRELATE statements in the rule DSL.
//
// Filter and tag rules are evaluated at ingest against the decoded message.
// DSL rules are compiled and validated on write but do not drive runtime
// convergence; the per-family identity functions are fixed.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Match operators accepted by filter and tag rules.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpRegex       = "regex"
)

// FilterRule drops matching alerts at ingest. AlertType is the family word;
// AlertSubtype narrows the rule to one subtype ("" applies to all).
type FilterRule struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	AlertType    string    `json:"alert_type"`
	AlertSubtype string    `json:"alert_subtype"`
	Field        string    `json:"field"`
	Operator     string    `json:"operator"`
	Value        string    `json:"value"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TagRule attaches Tags (dictionary tag names) to converged alerts whose
// decoded message satisfies the condition.
type TagRule struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	AlertType         string    `json:"alert_type"`
	AlertSubtype      string    `json:"alert_subtype"`
	ConditionField    string    `json:"condition_field"`
	ConditionOperator string    `json:"condition_operator"`
	ConditionValue    string    `json:"condition_value"`
	Tags              []string  `json:"tags"`
	Description       *string   `json:"description,omitempty"`
	Enabled           bool      `json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ConvergenceRule stores a CONVERGE statement. DSLRule is validated by the
// compiler before create and update.
type ConvergenceRule struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DSLRule     string    `json:"dsl_rule"`
	Description *string   `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CorrelationRule stores a CORRELATE statement, validated the same way.
type CorrelationRule struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DSLRule     string    `json:"dsl_rule"`
	Description *string   `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// =============================================================================
// TAGS
// =============================================================================

// Tag is a dictionary entry that can be attached to converged alerts, either
// by tag rules at ingest or manually through the API. UsageCount tracks live
// attachments.
type Tag struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Color       string    `json:"color"`
	Description *string   `json:"description,omitempty"`
	UsageCount  int32     `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AlertTagMapping attaches one tag to one converged alert. AlertType holds
// the family word. The (alert_id, alert_type, tag_id) triple is unique;
// re-attaching is a no-op.
type AlertTagMapping struct {
	ID        uuid.UUID `json:"id"`
	AlertID   uuid.UUID `json:"alert_id"`
	AlertType string    `json:"alert_type"`
	TagID     uuid.UUID `json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
