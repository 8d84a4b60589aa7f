package dsl

import "fmt"

// CompileResponse is the outcome of a dry-run compile. Exactly one of
// Message and Error is set.
type CompileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CompileConverge parses and validates a CONVERGE rule without storing
// it. Parse failures and validation failures are reported with distinct
// prefixes so callers can tell where the rule went wrong.
func CompileConverge(input string, fields Fields) CompileResponse {
	rule, err := ParseConverge(input)
	if err != nil {
		return CompileResponse{Error: "syntax error: " + err.Error()}
	}
	if err := ValidateConverge(rule, fields); err != nil {
		return CompileResponse{Error: "validation failed: " + err.Error()}
	}
	return CompileResponse{
		Success: true,
		Message: fmt.Sprintf("rule compiles: clauses=%d, group_by=%d, window=%d %s, threshold=%d",
			len(rule.Where.Clauses), len(rule.GroupBy), rule.Window.Value, rule.Window.Unit, rule.Threshold),
	}
}

// CompileCorrelate parses and validates a CORRELATE rule without
// storing it.
func CompileCorrelate(input string, fields Fields) CompileResponse {
	rule, err := ParseCorrelate(input)
	if err != nil {
		return CompileResponse{Error: "syntax error: " + err.Error()}
	}
	if err := ValidateCorrelate(rule, fields); err != nil {
		return CompileResponse{Error: "validation failed: " + err.Error()}
	}
	return CompileResponse{
		Success: true,
		Message: fmt.Sprintf("rule compiles: events=%d, join_clauses=%d, window=%d %s, severity=%d, name=%s",
			len(rule.Events), len(rule.JoinOn), rule.Window.Value, rule.Window.Unit, rule.Severity, rule.Name),
	}
}
