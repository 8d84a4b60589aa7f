package dsl

import "fmt"

// Fields answers whether a field name exists in the alert field
// dictionary. The dictionary is the union of all alert families, so a
// rule may reference any field regardless of which family it targets.
type Fields interface {
	Known(name string) bool
}

// ValidateConverge checks a parsed CONVERGE rule against the field
// dictionary. Event aliases on WHERE clauses are ignored; a converge
// rule evaluates a single alert.
func ValidateConverge(rule *ConvergeRule, fields Fields) error {
	for _, c := range rule.Where.Clauses {
		if !fields.Known(c.Field.Name) {
			return fmt.Errorf("unknown field: %s", c.Field.Name)
		}
	}
	for _, name := range rule.GroupBy {
		if !fields.Known(name) {
			return fmt.Errorf("unknown field: %s", name)
		}
	}
	if rule.Threshold < 1 {
		return fmt.Errorf("THRESHOLD must be at least 1, got %d", rule.Threshold)
	}
	return nil
}

// ValidateCorrelate checks a parsed CORRELATE rule: WHERE fields exist,
// JOIN ON references name defined event aliases and known fields, and
// SEVERITY is within the 1..4 alarm scale.
func ValidateCorrelate(rule *CorrelateRule, fields Fields) error {
	aliases := make(map[string]struct{}, len(rule.Events))
	for _, ev := range rule.Events {
		aliases[ev.Alias] = struct{}{}
		for _, c := range ev.Where.Clauses {
			if !fields.Known(c.Field.Name) {
				return fmt.Errorf("unknown field: %s", c.Field.Name)
			}
		}
	}
	for _, j := range rule.JoinOn {
		for _, ref := range []FieldRef{j.Left, j.Right} {
			if ref.EventAlias != "" {
				if _, ok := aliases[ref.EventAlias]; !ok {
					return fmt.Errorf("undefined event alias: %s", ref.EventAlias)
				}
			}
			if !fields.Known(ref.Name) {
				return fmt.Errorf("unknown field: %s", ref.Name)
			}
		}
	}
	if rule.Severity < 1 || rule.Severity > 4 {
		return fmt.Errorf("SEVERITY must be between 1 and 4, got %d", rule.Severity)
	}
	return nil
}
