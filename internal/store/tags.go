package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quillsec/alertconv/pkg/types"
)

// Sentinel errors for constraint violations the API maps to client errors.
var (
	ErrDuplicateTag = errors.New("tag name already exists")
	ErrTagNotFound  = errors.New("tag does not exist")
)

const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
)

func mapTagError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateTag
		case pgFKViolation:
			return ErrTagNotFound
		}
	}
	return err
}

// =============================================================================
// TAG DICTIONARY
// =============================================================================

const tagColumns = `id, name, category, color, description, usage_count, created_at, updated_at`

func scanTag(row pgx.Row) (*types.Tag, error) {
	var t types.Tag
	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Color, &t.Description,
		&t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag stores a new dictionary tag. A duplicate name returns
// ErrDuplicateTag.
func (s *Store) CreateTag(ctx context.Context, t *types.Tag) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tags (name, category, color, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, usage_count, created_at, updated_at
	`, t.Name, t.Category, t.Color, t.Description).
		Scan(&t.ID, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapTagError(err)
	}
	return nil
}

// GetTag retrieves a tag by ID.
func (s *Store) GetTag(ctx context.Context, id uuid.UUID) (*types.Tag, error) {
	t, err := scanTag(s.pool.QueryRow(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTags returns a page of tags with optional name search and category
// filter, newest first, with the unpaged total.
func (s *Store) ListTags(ctx context.Context, search, category string, limit, offset int) ([]*types.Tag, int, error) {
	var where []string
	var args []any
	argNum := 1
	if search != "" {
		where = append(where, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", argNum))
		args = append(args, search)
		argNum++
	}
	if category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argNum))
		args = append(args, category)
		argNum++
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+tagColumns+`
		FROM tags %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argNum, argNum+1)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// ListAllTags returns the whole dictionary ordered by category then name,
// for pickers and for the ingest tag-name index.
func (s *Store) ListAllTags(ctx context.Context) ([]types.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

// TagIDIndex returns the name-to-ID map for the whole dictionary.
func (s *Store) TagIDIndex(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM tags`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]uuid.UUID)
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		index[name] = id
	}
	return index, rows.Err()
}

// UpdateTag replaces the mutable fields and bumps updated_at. Returns nil
// when the tag does not exist; a duplicate name returns ErrDuplicateTag.
func (s *Store) UpdateTag(ctx context.Context, t *types.Tag) (*types.Tag, error) {
	updated, err := scanTag(s.pool.QueryRow(ctx, `
		UPDATE tags
		SET name = $2, category = $3, color = $4, description = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+tagColumns+`
	`, t.ID, t.Name, t.Category, t.Color, t.Description))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapTagError(err)
	}
	return updated, nil
}

// DeleteTag removes a tag, reporting whether it existed. Mappings cascade.
func (s *Store) DeleteTag(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// =============================================================================
// ALERT TAG MAPPINGS
// =============================================================================

// attachTagTx upserts one mapping row and bumps usage_count only when the
// row is actually new. The RETURNING clause distinguishes a fresh insert
// from the ON CONFLICT no-op.
func attachTagTx(ctx context.Context, tx pgx.Tx, alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error) {
	var mappingID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO alert_tag_mapping (alert_id, alert_type, tag_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (alert_id, alert_type, tag_id) DO NOTHING
		RETURNING id
	`, alertID, alertType, tagID).Scan(&mappingID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapTagError(err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE tags SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1
	`, tagID)
	return true, err
}

// AttachTags attaches tags to an alert, skipping duplicates. Returns how
// many mappings were actually created. An unknown tag ID returns
// ErrTagNotFound.
func (s *Store) AttachTags(ctx context.Context, alertID uuid.UUID, alertType string, tagIDs []uuid.UUID) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	attached := 0
	for _, tagID := range tagIDs {
		ok, err := attachTagTx(ctx, tx, alertID, alertType, tagID)
		if err != nil {
			return 0, err
		}
		if ok {
			attached++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return attached, nil
}

// DetachTag removes one mapping and decrements the tag's usage_count,
// clamped at zero. Reports whether a mapping existed.
func (s *Store) DetachTag(ctx context.Context, alertID uuid.UUID, alertType string, tagID uuid.UUID) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		DELETE FROM alert_tag_mapping
		WHERE alert_id = $1 AND alert_type = $2 AND tag_id = $3
	`, alertID, alertType, tagID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE tags SET usage_count = GREATEST(usage_count - 1, 0), updated_at = now()
		WHERE id = $1
	`, tagID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// DetachAllTags removes every mapping for an alert, decrementing each
// tag's usage_count. Returns how many mappings were removed.
func (s *Store) DetachAllTags(ctx context.Context, alertID uuid.UUID, alertType string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE tags SET usage_count = GREATEST(usage_count - 1, 0), updated_at = now()
		WHERE id IN (
			SELECT tag_id FROM alert_tag_mapping
			WHERE alert_id = $1 AND alert_type = $2
		)
	`, alertID, alertType); err != nil {
		return 0, err
	}
	ct, err := tx.Exec(ctx, `
		DELETE FROM alert_tag_mapping
		WHERE alert_id = $1 AND alert_type = $2
	`, alertID, alertType)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// ListTagsForAlert returns the tags attached to one alert, by name.
func (s *Store) ListTagsForAlert(ctx context.Context, alertID uuid.UUID, alertType string) ([]types.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns(tagColumns, "t")+`
		FROM tags t
		JOIN alert_tag_mapping m ON m.tag_id = t.id
		WHERE m.alert_id = $1 AND m.alert_type = $2
		ORDER BY t.name
	`, alertID, alertType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

// ListAlertsByTag returns a page of mappings for one tag, newest first,
// with the unpaged total.
func (s *Store) ListAlertsByTag(ctx context.Context, tagID uuid.UUID, limit, offset int) ([]types.AlertTagMapping, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alert_tag_mapping WHERE tag_id = $1`, tagID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, alert_id, alert_type, tag_id, created_at
		FROM alert_tag_mapping
		WHERE tag_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tagID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []types.AlertTagMapping
	for rows.Next() {
		var m types.AlertTagMapping
		if err := rows.Scan(&m.ID, &m.AlertID, &m.AlertType, &m.TagID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
