// Package types - Auto-publish configuration and push logs
package types

import (
	"time"

	"github.com/google/uuid"
)

// PushConfig is the singleton auto-publish configuration (row id = 1). The
// publisher re-reads it every cycle, so API updates take effect without a
// restart.
type PushConfig struct {
	ID              int16     `json:"id"`
	Name            string    `json:"name"`
	Enabled         bool      `json:"enabled"`
	WindowMinutes   int32     `json:"window_minutes"`
	IntervalSeconds int32     `json:"interval_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PushLog records one converged alert delivered downstream. Rows are written
// only after the outbound batch is acknowledged, so replays after a failed
// delivery re-publish the same records (at-least-once).
type PushLog struct {
	ID          uuid.UUID   `json:"id"`
	AlertType   AlertFamily `json:"alert_type"`
	ConvergedID uuid.UUID   `json:"converged_id"`
	PushedAt    time.Time   `json:"pushed_at"`
}

// PushLogView is the API projection of a push log: the family is resolved to
// its display name and the timestamp flattened to epoch milliseconds.
type PushLogView struct {
	ID            uuid.UUID   `json:"id"`
	AlertType     AlertFamily `json:"alert_type"`
	AlertTypeName string      `json:"alert_type_name"`
	ConvergedID   uuid.UUID   `json:"converged_id"`
	PushedAt      int64       `json:"pushed_at"`
}

// View converts a stored push log into its API projection.
func (l PushLog) View() PushLogView {
	return PushLogView{
		ID:            l.ID,
		AlertType:     l.AlertType,
		AlertTypeName: l.AlertType.DisplayName(),
		ConvergedID:   l.ConvergedID,
		PushedAt:      l.PushedAt.UnixMilli(),
	}
}
