// Package ingest drains the inbound alert streams and runs each message
// through the pipeline: validate, normalize, filter, store, converge, tag.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quillsec/alertconv/pkg/types"
)

// AssetSource loads the rule set the pipeline evaluates.
type AssetSource interface {
	ListEnabledFilterRules(ctx context.Context) ([]types.FilterRule, error)
	ListEnabledTagRules(ctx context.Context) ([]types.TagRule, error)
	TagIDIndex(ctx context.Context) (map[string]uuid.UUID, error)
}

// Assets is the rule set frozen at pipeline start: enabled filter rules,
// enabled tag rules, and the tag name to ID index used to resolve rule
// matches into attachments. Rule changes take effect on restart.
type Assets struct {
	FilterRules []types.FilterRule
	TagRules    []types.TagRule
	TagIDs      map[string]uuid.UUID
}

// LoadAssets reads the enabled rules and the tag dictionary. Tag rules that
// name tags missing from the dictionary are kept (their other tags still
// resolve), but each unknown name is logged once here instead of per
// message.
func LoadAssets(ctx context.Context, src AssetSource, logger *slog.Logger) (*Assets, error) {
	filterRules, err := src.ListEnabledFilterRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading filter rules: %w", err)
	}

	tagRules, err := src.ListEnabledTagRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tag rules: %w", err)
	}

	tagIDs, err := src.TagIDIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tag index: %w", err)
	}

	for _, rule := range tagRules {
		for _, name := range rule.Tags {
			if _, ok := tagIDs[name]; !ok {
				logger.Warn("tag rule references unknown tag",
					"rule", rule.Name,
					"tag", name,
				)
			}
		}
	}

	logger.Info("pipeline assets loaded",
		"filter_rules", len(filterRules),
		"tag_rules", len(tagRules),
		"tags", len(tagIDs),
	)

	return &Assets{
		FilterRules: filterRules,
		TagRules:    tagRules,
		TagIDs:      tagIDs,
	}, nil
}

// ResolveTagIDs maps matched tag names to dictionary IDs, dropping names
// the dictionary does not hold.
func (a *Assets) ResolveTagIDs(names []string) []uuid.UUID {
	if len(names) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		if id, ok := a.TagIDs[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
