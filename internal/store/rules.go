package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillsec/alertconv/pkg/types"
)

// =============================================================================
// FILTER RULES
// =============================================================================

const filterRuleColumns = `id, name, alert_type, alert_subtype, field, operator,
	value, enabled, created_at, updated_at`

func scanFilterRule(row pgx.Row) (*types.FilterRule, error) {
	var r types.FilterRule
	err := row.Scan(&r.ID, &r.Name, &r.AlertType, &r.AlertSubtype, &r.Field,
		&r.Operator, &r.Value, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateFilterRule stores a new filter rule and fills the generated fields.
func (s *Store) CreateFilterRule(ctx context.Context, r *types.FilterRule) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO filter_rules (name, alert_type, alert_subtype, field, operator, value, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, r.Name, r.AlertType, r.AlertSubtype, r.Field, r.Operator, r.Value, r.Enabled).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// GetFilterRule retrieves a filter rule by ID.
func (s *Store) GetFilterRule(ctx context.Context, id uuid.UUID) (*types.FilterRule, error) {
	r, err := scanFilterRule(s.pool.QueryRow(ctx,
		`SELECT `+filterRuleColumns+` FROM filter_rules WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListFilterRules returns a page of filter rules, newest first, with the
// unpaged total.
func (s *Store) ListFilterRules(ctx context.Context, limit, offset int) ([]*types.FilterRule, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM filter_rules`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+filterRuleColumns+`
		FROM filter_rules
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.FilterRule
	for rows.Next() {
		r, err := scanFilterRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

// ListEnabledFilterRules returns every enabled filter rule, newest first.
// This is the evaluation order at ingest.
func (s *Store) ListEnabledFilterRules(ctx context.Context) ([]types.FilterRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+filterRuleColumns+`
		FROM filter_rules
		WHERE enabled = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.FilterRule
	for rows.Next() {
		r, err := scanFilterRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *r)
	}
	return items, rows.Err()
}

// UpdateFilterRule replaces every mutable field and bumps updated_at.
// Returns nil when the rule does not exist.
func (s *Store) UpdateFilterRule(ctx context.Context, r *types.FilterRule) (*types.FilterRule, error) {
	updated, err := scanFilterRule(s.pool.QueryRow(ctx, `
		UPDATE filter_rules
		SET name = $2, alert_type = $3, alert_subtype = $4, field = $5,
			operator = $6, value = $7, enabled = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+filterRuleColumns+`
	`, r.ID, r.Name, r.AlertType, r.AlertSubtype, r.Field, r.Operator, r.Value, r.Enabled))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return updated, err
}

// DeleteFilterRule removes a filter rule, reporting whether it existed.
func (s *Store) DeleteFilterRule(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM filter_rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// =============================================================================
// TAG RULES
// =============================================================================

const tagRuleColumns = `id, name, alert_type, alert_subtype, condition_field,
	condition_operator, condition_value, tags, description, enabled,
	created_at, updated_at`

func scanTagRule(row pgx.Row) (*types.TagRule, error) {
	var r types.TagRule
	err := row.Scan(&r.ID, &r.Name, &r.AlertType, &r.AlertSubtype, &r.ConditionField,
		&r.ConditionOperator, &r.ConditionValue, &r.Tags, &r.Description, &r.Enabled,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateTagRule stores a new tag rule and fills the generated fields.
func (s *Store) CreateTagRule(ctx context.Context, r *types.TagRule) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO tag_rules (name, alert_type, alert_subtype, condition_field,
			condition_operator, condition_value, tags, description, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, r.Name, r.AlertType, r.AlertSubtype, r.ConditionField,
		r.ConditionOperator, r.ConditionValue, r.Tags, r.Description, r.Enabled).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// GetTagRule retrieves a tag rule by ID.
func (s *Store) GetTagRule(ctx context.Context, id uuid.UUID) (*types.TagRule, error) {
	r, err := scanTagRule(s.pool.QueryRow(ctx,
		`SELECT `+tagRuleColumns+` FROM tag_rules WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListTagRules returns a page of tag rules, newest first, with the unpaged
// total.
func (s *Store) ListTagRules(ctx context.Context, limit, offset int) ([]*types.TagRule, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tag_rules`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+tagRuleColumns+`
		FROM tag_rules
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.TagRule
	for rows.Next() {
		r, err := scanTagRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

// ListEnabledTagRules returns every enabled tag rule, newest first.
func (s *Store) ListEnabledTagRules(ctx context.Context) ([]types.TagRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tagRuleColumns+`
		FROM tag_rules
		WHERE enabled = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.TagRule
	for rows.Next() {
		r, err := scanTagRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *r)
	}
	return items, rows.Err()
}

// UpdateTagRule replaces every mutable field and bumps updated_at. Returns
// nil when the rule does not exist.
func (s *Store) UpdateTagRule(ctx context.Context, r *types.TagRule) (*types.TagRule, error) {
	updated, err := scanTagRule(s.pool.QueryRow(ctx, `
		UPDATE tag_rules
		SET name = $2, alert_type = $3, alert_subtype = $4, condition_field = $5,
			condition_operator = $6, condition_value = $7, tags = $8,
			description = $9, enabled = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+tagRuleColumns+`
	`, r.ID, r.Name, r.AlertType, r.AlertSubtype, r.ConditionField,
		r.ConditionOperator, r.ConditionValue, r.Tags, r.Description, r.Enabled))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return updated, err
}

// DeleteTagRule removes a tag rule, reporting whether it existed.
func (s *Store) DeleteTagRule(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM tag_rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// =============================================================================
// CONVERGENCE RULES (DSL)
// =============================================================================

const dslRuleColumns = `id, name, dsl_rule, description, enabled, created_at, updated_at`

func scanConvergenceRule(row pgx.Row) (*types.ConvergenceRule, error) {
	var r types.ConvergenceRule
	err := row.Scan(&r.ID, &r.Name, &r.DSLRule, &r.Description, &r.Enabled,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateConvergenceRule stores a new convergence rule. Callers validate the
// DSL first.
func (s *Store) CreateConvergenceRule(ctx context.Context, r *types.ConvergenceRule) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO convergence_rules (name, dsl_rule, description, enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, r.Name, r.DSLRule, r.Description, r.Enabled).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// GetConvergenceRule retrieves a convergence rule by ID.
func (s *Store) GetConvergenceRule(ctx context.Context, id uuid.UUID) (*types.ConvergenceRule, error) {
	r, err := scanConvergenceRule(s.pool.QueryRow(ctx,
		`SELECT `+dslRuleColumns+` FROM convergence_rules WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListConvergenceRules returns a page of convergence rules, newest first,
// with the unpaged total.
func (s *Store) ListConvergenceRules(ctx context.Context, limit, offset int) ([]*types.ConvergenceRule, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM convergence_rules`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+dslRuleColumns+`
		FROM convergence_rules
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.ConvergenceRule
	for rows.Next() {
		r, err := scanConvergenceRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

// UpdateConvergenceRule replaces every mutable field and bumps updated_at.
// Returns nil when the rule does not exist.
func (s *Store) UpdateConvergenceRule(ctx context.Context, r *types.ConvergenceRule) (*types.ConvergenceRule, error) {
	updated, err := scanConvergenceRule(s.pool.QueryRow(ctx, `
		UPDATE convergence_rules
		SET name = $2, dsl_rule = $3, description = $4, enabled = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+dslRuleColumns+`
	`, r.ID, r.Name, r.DSLRule, r.Description, r.Enabled))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return updated, err
}

// DeleteConvergenceRule removes a convergence rule, reporting whether it
// existed.
func (s *Store) DeleteConvergenceRule(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM convergence_rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// =============================================================================
// CORRELATION RULES (DSL)
// =============================================================================

func scanCorrelationRule(row pgx.Row) (*types.CorrelationRule, error) {
	var r types.CorrelationRule
	err := row.Scan(&r.ID, &r.Name, &r.DSLRule, &r.Description, &r.Enabled,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateCorrelationRule stores a new correlation rule. Callers validate the
// DSL first.
func (s *Store) CreateCorrelationRule(ctx context.Context, r *types.CorrelationRule) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO correlation_rules (name, dsl_rule, description, enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, r.Name, r.DSLRule, r.Description, r.Enabled).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// GetCorrelationRule retrieves a correlation rule by ID.
func (s *Store) GetCorrelationRule(ctx context.Context, id uuid.UUID) (*types.CorrelationRule, error) {
	r, err := scanCorrelationRule(s.pool.QueryRow(ctx,
		`SELECT `+dslRuleColumns+` FROM correlation_rules WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListCorrelationRules returns a page of correlation rules, newest first,
// with the unpaged total.
func (s *Store) ListCorrelationRules(ctx context.Context, limit, offset int) ([]*types.CorrelationRule, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM correlation_rules`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+dslRuleColumns+`
		FROM correlation_rules
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*types.CorrelationRule
	for rows.Next() {
		r, err := scanCorrelationRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

// UpdateCorrelationRule replaces every mutable field and bumps updated_at.
// Returns nil when the rule does not exist.
func (s *Store) UpdateCorrelationRule(ctx context.Context, r *types.CorrelationRule) (*types.CorrelationRule, error) {
	updated, err := scanCorrelationRule(s.pool.QueryRow(ctx, `
		UPDATE correlation_rules
		SET name = $2, dsl_rule = $3, description = $4, enabled = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+dslRuleColumns+`
	`, r.ID, r.Name, r.DSLRule, r.Description, r.Enabled))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return updated, err
}

// DeleteCorrelationRule removes a correlation rule, reporting whether it
// existed.
func (s *Store) DeleteCorrelationRule(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM correlation_rules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
