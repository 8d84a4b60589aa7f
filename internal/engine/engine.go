// Package engine evaluates filter and tag rules against decoded alert
// messages before they are stored.
//
// Rules compare one message field against a string value. Field values are
// coerced to strings first: numbers canonically ("5250", "3.14"), booleans
// as "true"/"false", JSON null as "". Missing fields never match, and
// neither do arrays or objects.
package engine

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/quillsec/alertconv/pkg/types"
)

type Engine struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "engine")}
}

// Filter returns the first enabled rule that matches the message, or nil
// when the alert should pass through. Rule order is the store's listing
// order.
func (e *Engine) Filter(rules []types.FilterRule, family types.AlertFamily, msg map[string]any) *types.FilterRule {
	word := family.String()
	for i := range rules {
		r := &rules[i]
		if !r.Enabled || r.AlertType != word {
			continue
		}
		if !subtypeMatches(r.AlertSubtype, msg) {
			continue
		}
		if e.match(r.Field, r.Operator, r.Value, msg, false) {
			return r
		}
	}
	return nil
}

// EvaluateTags returns the tag names from every enabled tag rule the
// message satisfies, deduplicated in rule order. Name-to-ID resolution is
// the caller's problem; the engine only knows names.
func (e *Engine) EvaluateTags(rules []types.TagRule, family types.AlertFamily, msg map[string]any) []string {
	word := family.String()
	var names []string
	seen := make(map[string]struct{})
	for i := range rules {
		r := &rules[i]
		if !r.Enabled || r.AlertType != word {
			continue
		}
		if !subtypeMatches(r.AlertSubtype, msg) {
			continue
		}
		if !e.match(r.ConditionField, r.ConditionOperator, r.ConditionValue, msg, true) {
			continue
		}
		for _, name := range r.Tags {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// match evaluates one clause. nullNe enables the tag-rule reading of "ne"
// against an explicit JSON null: the field is present and differs from any
// value, so the clause holds without coercion.
func (e *Engine) match(field, op, value string, msg map[string]any, nullNe bool) bool {
	raw, ok := msg[field]
	if !ok {
		return false
	}
	if raw == nil && nullNe && op == types.OpNe {
		return true
	}
	s, ok := stringify(raw)
	if !ok {
		return false
	}

	switch op {
	case types.OpEq:
		return s == value
	case types.OpNe:
		return s != value
	case types.OpContains:
		return strings.Contains(s, value)
	case types.OpNotContains:
		return !strings.Contains(s, value)
	case types.OpRegex:
		re, err := regexp.Compile(value)
		if err != nil {
			e.logger.Warn("invalid regex in rule, treating as no match",
				"pattern", value, "error", err)
			return false
		}
		return re.MatchString(s)
	default:
		e.logger.Warn("unknown rule operator, treating as no match", "operator", op)
		return false
	}
}

// subtypeMatches applies the rule's subtype gate against the message's
// alarm_subtype. An empty rule subtype applies to every subtype.
func subtypeMatches(ruleSubtype string, msg map[string]any) bool {
	if ruleSubtype == "" {
		return true
	}
	raw, ok := msg["alarm_subtype"]
	if !ok {
		return false
	}
	s, ok := stringify(raw)
	if !ok {
		return false
	}
	return s == ruleSubtype
}

func stringify(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
