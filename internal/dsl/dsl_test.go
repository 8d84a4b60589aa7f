package dsl

import (
	"errors"
	"strings"
	"testing"
)

type fieldSet map[string]bool

func (f fieldSet) Known(name string) bool { return f[name] }

func testFields() fieldSet {
	return fieldSet{
		"alarm_type":     true,
		"alarm_subtype":  true,
		"alarm_severity": true,
		"alarm_name":     true,
		"src_ip":         true,
		"dst_ip":         true,
		"src_port":       true,
		"dst_port":       true,
		"protocol":       true,
		"sha256":         true,
		"file_path":      true,
		"host_name":      true,
		"terminal_ip":    true,
	}
}

func TestParseConverge(t *testing.T) {
	input := `CONVERGE WHERE alarm_type == 1 AND src_ip != "10.0.0.1" OR protocol CONTAINS tcp GROUP BY src_ip, dst_ip WINDOW 5m THRESHOLD 10`

	rule, err := ParseConverge(input)
	if err != nil {
		t.Fatalf("ParseConverge: %v", err)
	}

	if len(rule.Where.Clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(rule.Where.Clauses))
	}
	first := rule.Where.Clauses[0]
	if first.Field.Name != "alarm_type" || first.Op != OpEqual {
		t.Errorf("unexpected first clause: %+v", first)
	}
	if first.Value.Kind != NumberValue || first.Value.Number != 1 {
		t.Errorf("unexpected first value: %+v", first.Value)
	}
	if first.Connector != "" {
		t.Errorf("first clause should have no connector, got %q", first.Connector)
	}
	second := rule.Where.Clauses[1]
	if second.Connector != LogicAnd || second.Op != OpNotEqual {
		t.Errorf("unexpected second clause: %+v", second)
	}
	if second.Value.Kind != StringValue || second.Value.Str != "10.0.0.1" {
		t.Errorf("unexpected second value: %+v", second.Value)
	}
	third := rule.Where.Clauses[2]
	if third.Connector != LogicOr || third.Op != OpContains {
		t.Errorf("unexpected third clause: %+v", third)
	}
	if third.Value.Kind != StringValue || third.Value.Str != "tcp" {
		t.Errorf("bare word value should parse as string, got %+v", third.Value)
	}

	if len(rule.GroupBy) != 2 || rule.GroupBy[0] != "src_ip" || rule.GroupBy[1] != "dst_ip" {
		t.Errorf("unexpected group by: %v", rule.GroupBy)
	}
	if rule.Window.Value != 5 || rule.Window.Unit != UnitMinutes {
		t.Errorf("unexpected window: %+v", rule.Window)
	}
	if rule.Threshold != 10 {
		t.Errorf("unexpected threshold: %d", rule.Threshold)
	}
}

func TestParseConvergeWindowUnits(t *testing.T) {
	tests := []struct {
		window string
		value  int
		unit   TimeUnit
	}{
		{"5m", 5, UnitMinutes},
		{"5 minutes", 5, UnitMinutes},
		{"2h", 2, UnitHours},
		{"2 hours", 2, UnitHours},
		{"1d", 1, UnitDays},
		{"7 days", 7, UnitDays},
		{"30", 30, UnitMinutes},
	}
	for _, tt := range tests {
		input := "CONVERGE WHERE alarm_type == 1 GROUP BY src_ip WINDOW " + tt.window + " THRESHOLD 3"
		rule, err := ParseConverge(input)
		if err != nil {
			t.Errorf("window %q: %v", tt.window, err)
			continue
		}
		if rule.Window.Value != tt.value || rule.Window.Unit != tt.unit {
			t.Errorf("window %q: got %+v", tt.window, rule.Window)
		}
	}
}

func TestParseConvergeInList(t *testing.T) {
	input := `CONVERGE WHERE alarm_subtype IN (101, 102, "ALM_STR_NA") GROUP BY src_ip WINDOW 10m THRESHOLD 5`

	rule, err := ParseConverge(input)
	if err != nil {
		t.Fatalf("ParseConverge: %v", err)
	}
	v := rule.Where.Clauses[0].Value
	if v.Kind != ListValue || len(v.List) != 3 {
		t.Fatalf("expected list of 3, got %+v", v)
	}
	if v.List[0].Kind != NumberValue || v.List[0].Number != 101 {
		t.Errorf("unexpected list[0]: %+v", v.List[0])
	}
	if v.List[2].Kind != StringValue || v.List[2].Str != "ALM_STR_NA" {
		t.Errorf("unexpected list[2]: %+v", v.List[2])
	}
}

func TestParseConvergeSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing converge", `WHERE alarm_type == 1 GROUP BY src_ip WINDOW 5m THRESHOLD 1`, "expected CONVERGE"},
		{"missing where", `CONVERGE alarm_type == 1 GROUP BY src_ip WINDOW 5m THRESHOLD 1`, "expected WHERE"},
		{"single equals", `CONVERGE WHERE alarm_type = 1 GROUP BY src_ip WINDOW 5m THRESHOLD 1`, "comparison is '=='"},
		{"missing value", `CONVERGE WHERE alarm_type == GROUP BY src_ip WINDOW 5m THRESHOLD 1`, ""},
		{"empty group by", `CONVERGE WHERE alarm_type == 1 GROUP BY WINDOW 5m THRESHOLD 1`, ""},
		{"missing threshold value", `CONVERGE WHERE alarm_type == 1 GROUP BY src_ip WINDOW 5m THRESHOLD`, "expected number"},
		{"trailing input", `CONVERGE WHERE alarm_type == 1 GROUP BY src_ip WINDOW 5m THRESHOLD 1 EXTRA`, "unexpected input"},
		{"unterminated string", `CONVERGE WHERE alarm_name == "open GROUP BY src_ip WINDOW 5m THRESHOLD 1`, "unterminated string"},
		{"in without parens", `CONVERGE WHERE alarm_subtype IN 101 GROUP BY src_ip WINDOW 5m THRESHOLD 1`, "expected '(' after IN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConverge(tt.input)
			if err == nil {
				t.Fatal("expected parse error, got nil")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if perr.Line < 1 || perr.Col < 1 {
				t.Errorf("positions should be 1-based, got line %d col %d", perr.Line, perr.Col)
			}
		})
	}
}

func TestParseCorrelate(t *testing.T) {
	input := `CORRELATE
EVENT a WHERE alarm_type == 1 AND alarm_severity >= 3
EVENT b WHERE alarm_type == 3
JOIN ON a.src_ip == b.terminal_ip AND a.host_name == b.host_name
WINDOW 10m
GENERATE SEVERITY 4 NAME "横向移动告警" DESCRIPTION "network attack followed by host behavior"`

	rule, err := ParseCorrelate(input)
	if err != nil {
		t.Fatalf("ParseCorrelate: %v", err)
	}

	if len(rule.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rule.Events))
	}
	if rule.Events[0].Alias != "a" || rule.Events[1].Alias != "b" {
		t.Errorf("unexpected aliases: %q %q", rule.Events[0].Alias, rule.Events[1].Alias)
	}
	if len(rule.Events[0].Where.Clauses) != 2 {
		t.Errorf("expected 2 clauses on event a, got %d", len(rule.Events[0].Where.Clauses))
	}

	if len(rule.JoinOn) != 2 {
		t.Fatalf("expected 2 join clauses, got %d", len(rule.JoinOn))
	}
	j := rule.JoinOn[0]
	if j.Left.EventAlias != "a" || j.Left.Name != "src_ip" {
		t.Errorf("unexpected join left: %+v", j.Left)
	}
	if j.Right.EventAlias != "b" || j.Right.Name != "terminal_ip" {
		t.Errorf("unexpected join right: %+v", j.Right)
	}
	if rule.JoinOn[1].Connector != LogicAnd {
		t.Errorf("expected AND connector on second join clause, got %q", rule.JoinOn[1].Connector)
	}

	if rule.Window.Value != 10 || rule.Window.Unit != UnitMinutes {
		t.Errorf("unexpected window: %+v", rule.Window)
	}
	if rule.Severity != 4 {
		t.Errorf("unexpected severity: %d", rule.Severity)
	}
	if rule.Name != "横向移动告警" {
		t.Errorf("unexpected name: %q", rule.Name)
	}
	if rule.Description == "" {
		t.Error("description should not be empty")
	}
}

func TestParseCorrelateRequiresTwoEvents(t *testing.T) {
	input := `CORRELATE
EVENT a WHERE alarm_type == 1
JOIN ON a.src_ip == a.dst_ip
WINDOW 5m
GENERATE SEVERITY 2 NAME "solo" DESCRIPTION "only one event"`

	_, err := ParseCorrelate(input)
	if err == nil {
		t.Fatal("expected error for single-event rule")
	}
	if !strings.Contains(err.Error(), "at least 2 EVENT definitions") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseCorrelateJoinRequiresEquality(t *testing.T) {
	input := `CORRELATE
EVENT a WHERE alarm_type == 1
EVENT b WHERE alarm_type == 2
JOIN ON a.src_ip != b.src_ip
WINDOW 5m
GENERATE SEVERITY 2 NAME "n" DESCRIPTION "d"`

	_, err := ParseCorrelate(input)
	if err == nil {
		t.Fatal("expected error for non-equality join")
	}
	if !strings.Contains(err.Error(), "JOIN ON requires '=='") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateConverge(t *testing.T) {
	fields := testFields()

	rule, err := ParseConverge(`CONVERGE WHERE alarm_type == 1 GROUP BY src_ip, dst_ip WINDOW 5m THRESHOLD 3`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateConverge(rule, fields); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	rule, err = ParseConverge(`CONVERGE WHERE no_such_field == 1 GROUP BY src_ip WINDOW 5m THRESHOLD 3`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateConverge(rule, fields); err == nil || !strings.Contains(err.Error(), "unknown field: no_such_field") {
		t.Errorf("expected unknown field error, got %v", err)
	}

	rule, err = ParseConverge(`CONVERGE WHERE alarm_type == 1 GROUP BY not_a_field WINDOW 5m THRESHOLD 3`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateConverge(rule, fields); err == nil || !strings.Contains(err.Error(), "unknown field: not_a_field") {
		t.Errorf("expected unknown field error for group by, got %v", err)
	}

	rule, err = ParseConverge(`CONVERGE WHERE alarm_type == 1 GROUP BY src_ip WINDOW 5m THRESHOLD 0`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateConverge(rule, fields); err == nil || !strings.Contains(err.Error(), "THRESHOLD must be at least 1") {
		t.Errorf("expected threshold error, got %v", err)
	}
}

func TestValidateCorrelate(t *testing.T) {
	fields := testFields()

	valid := `CORRELATE
EVENT a WHERE alarm_type == 1
EVENT b WHERE alarm_type == 3
JOIN ON a.src_ip == b.terminal_ip
WINDOW 10m
GENERATE SEVERITY 3 NAME "n" DESCRIPTION "d"`

	rule, err := ParseCorrelate(valid)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateCorrelate(rule, fields); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	undefinedAlias := `CORRELATE
EVENT a WHERE alarm_type == 1
EVENT b WHERE alarm_type == 3
JOIN ON a.src_ip == c.terminal_ip
WINDOW 10m
GENERATE SEVERITY 3 NAME "n" DESCRIPTION "d"`

	rule, err = ParseCorrelate(undefinedAlias)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateCorrelate(rule, fields); err == nil || !strings.Contains(err.Error(), "undefined event alias: c") {
		t.Errorf("expected undefined alias error, got %v", err)
	}

	for _, severity := range []int{0, 5} {
		input := `CORRELATE
EVENT a WHERE alarm_type == 1
EVENT b WHERE alarm_type == 3
JOIN ON a.src_ip == b.terminal_ip
WINDOW 10m
GENERATE SEVERITY ` + map[int]string{0: "0", 5: "5"}[severity] + ` NAME "n" DESCRIPTION "d"`
		rule, err = ParseCorrelate(input)
		if err != nil {
			t.Fatalf("parse severity %d: %v", severity, err)
		}
		if err := ValidateCorrelate(rule, fields); err == nil || !strings.Contains(err.Error(), "SEVERITY must be between 1 and 4") {
			t.Errorf("severity %d: expected range error, got %v", severity, err)
		}
	}

	unknownJoinField := `CORRELATE
EVENT a WHERE alarm_type == 1
EVENT b WHERE alarm_type == 3
JOIN ON a.src_ip == b.bogus
WINDOW 10m
GENERATE SEVERITY 3 NAME "n" DESCRIPTION "d"`

	rule, err = ParseCorrelate(unknownJoinField)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateCorrelate(rule, fields); err == nil || !strings.Contains(err.Error(), "unknown field: bogus") {
		t.Errorf("expected unknown join field error, got %v", err)
	}
}

func TestCompileConverge(t *testing.T) {
	fields := testFields()

	resp := CompileConverge(`CONVERGE WHERE alarm_type == 1 AND src_ip != "10.0.0.1" GROUP BY src_ip, dst_ip WINDOW 5m THRESHOLD 10`, fields)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	want := "rule compiles: clauses=2, group_by=2, window=5 Minutes, threshold=10"
	if resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if resp.Error != "" {
		t.Errorf("error should be empty on success, got %q", resp.Error)
	}

	resp = CompileConverge(`CONVERGE WHERE alarm_type = 1 GROUP BY src_ip WINDOW 5m THRESHOLD 1`, fields)
	if resp.Success {
		t.Fatal("expected failure for syntax error")
	}
	if !strings.HasPrefix(resp.Error, "syntax error: ") {
		t.Errorf("unexpected error prefix: %q", resp.Error)
	}

	resp = CompileConverge(`CONVERGE WHERE mystery == 1 GROUP BY src_ip WINDOW 5m THRESHOLD 1`, fields)
	if resp.Success {
		t.Fatal("expected failure for unknown field")
	}
	if !strings.HasPrefix(resp.Error, "validation failed: ") {
		t.Errorf("unexpected error prefix: %q", resp.Error)
	}
}

func TestCompileCorrelate(t *testing.T) {
	fields := testFields()

	input := `CORRELATE
EVENT a WHERE alarm_type == 1
EVENT b WHERE alarm_type == 3
JOIN ON a.src_ip == b.terminal_ip
WINDOW 2h
GENERATE SEVERITY 4 NAME "chain" DESCRIPTION "d"`

	resp := CompileCorrelate(input, fields)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	want := "rule compiles: events=2, join_clauses=1, window=2 Hours, severity=4, name=chain"
	if resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}

	resp = CompileCorrelate(`CORRELATE EVENT a WHERE alarm_type == 1 JOIN ON a.x == a.y WINDOW 5m GENERATE SEVERITY 2 NAME "n" DESCRIPTION "d"`, fields)
	if resp.Success || !strings.HasPrefix(resp.Error, "syntax error: ") {
		t.Errorf("single-event rule should fail with syntax error, got %+v", resp)
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := ParseConverge("CONVERGE WHERE\nalarm_type ==\nGROUP BY src_ip WINDOW 5m THRESHOLD 1")
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Line != 3 {
		t.Errorf("expected error on line 3, got line %d", perr.Line)
	}
}
