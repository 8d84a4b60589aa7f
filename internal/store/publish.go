package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// AUTO-PUSH CONFIG
// =============================================================================

const pushConfigColumns = `id, name, enabled, window_minutes, interval_seconds, created_at, updated_at`

func scanPushConfig(row pgx.Row) (*types.PushConfig, error) {
	var c types.PushConfig
	err := row.Scan(&c.ID, &c.Name, &c.Enabled, &c.WindowMinutes,
		&c.IntervalSeconds, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetPushConfig retrieves the singleton auto-publish configuration. The row
// is seeded by the migrations; nil means the seed is missing.
func (s *Store) GetPushConfig(ctx context.Context) (*types.PushConfig, error) {
	c, err := scanPushConfig(s.pool.QueryRow(ctx,
		`SELECT `+pushConfigColumns+` FROM auto_push_config WHERE id = 1`))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// UpdatePushConfig updates the singleton row. Returns nil when the seed row
// is missing.
func (s *Store) UpdatePushConfig(ctx context.Context, enabled bool, windowMinutes, intervalSeconds int32) (*types.PushConfig, error) {
	c, err := scanPushConfig(s.pool.QueryRow(ctx, `
		UPDATE auto_push_config
		SET enabled = $1, window_minutes = $2, interval_seconds = $3, updated_at = now()
		WHERE id = 1
		RETURNING `+pushConfigColumns,
		enabled, windowMinutes, intervalSeconds))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// =============================================================================
// PUSH LOGS
// =============================================================================

// InsertPushLogs records delivered converged alerts, one row per record,
// in a single transaction. Called only after the outbound batch was
// acknowledged.
func (s *Store) InsertPushLogs(ctx context.Context, family types.AlertFamily, convergedIDs []uuid.UUID) error {
	if len(convergedIDs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, id := range convergedIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO converged_push_logs (alert_type, converged_id)
			VALUES ($1, $2)
		`, int16(family), id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListPushLogs returns a page of push logs, most recent first, optionally
// narrowed to one family, with the unpaged total.
func (s *Store) ListPushLogs(ctx context.Context, family *types.AlertFamily, limit, offset int) ([]types.PushLog, int, error) {
	whereClause := ""
	args := []any{}
	argNum := 1
	if family != nil {
		whereClause = fmt.Sprintf("WHERE alert_type = $%d", argNum)
		args = append(args, int16(*family))
		argNum++
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM converged_push_logs `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, alert_type, converged_id, pushed_at
		FROM converged_push_logs %s
		ORDER BY pushed_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argNum, argNum+1)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []types.PushLog
	for rows.Next() {
		var l types.PushLog
		if err := rows.Scan(&l.ID, &l.AlertType, &l.ConvergedID, &l.PushedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

// CountPushedSince counts push log rows written at or after since.
func (s *Store) CountPushedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM converged_push_logs WHERE pushed_at >= $1`, since).Scan(&n)
	return n, err
}
