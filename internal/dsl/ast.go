// Package dsl compiles the rule definition language.
//
// Two statement forms are supported:
//
//	CONVERGE WHERE <condition> GROUP BY f1, f2 WINDOW 5m THRESHOLD 3
//
//	CORRELATE EVENT a WHERE <condition> EVENT b WHERE <condition>
//	  JOIN ON a.field == b.field WINDOW 10m
//	  GENERATE SEVERITY 3 NAME "..." DESCRIPTION "..."
//
// Rules are parsed by a hand-written lexer and recursive-descent parser,
// then validated against the field dictionary. Compiled rules are stored
// as text; the ingest pipeline does not evaluate them (convergence
// identity is fixed per family), so the AST exists for validation and for
// future evaluation.
package dsl

// Operator is a comparison operator in a condition or join clause.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "CONTAINS"
	OpRegex          Operator = "REGEX"
	OpIn             Operator = "IN"
)

// LogicalOp connects two adjacent clauses.
type LogicalOp string

const (
	LogicAnd LogicalOp = "AND"
	LogicOr  LogicalOp = "OR"
)

// ValueKind discriminates Value.
type ValueKind int

const (
	NumberValue ValueKind = iota
	StringValue
	ListValue
)

// Value is a literal on the right-hand side of a comparison. Bare
// identifiers parse as string values, so `protocol == TCP` and
// `protocol == "TCP"` are equivalent.
type Value struct {
	Kind   ValueKind
	Number int64
	Str    string
	List   []Value
}

// FieldRef names an alert field, optionally qualified by an event alias
// (`a.dst_ip`). EventAlias is empty for bare references.
type FieldRef struct {
	EventAlias string
	Name       string
}

func (f FieldRef) String() string {
	if f.EventAlias != "" {
		return f.EventAlias + "." + f.Name
	}
	return f.Name
}

// Clause is one comparison. Connector holds the logical operator linking
// the clause to the one before it; it is empty on the first clause.
type Clause struct {
	Field     FieldRef
	Op        Operator
	Value     Value
	Connector LogicalOp
}

// Condition is a flat clause list in source order. Evaluation, when it
// comes, is left to right without precedence between AND and OR.
type Condition struct {
	Clauses []Clause
}

// TimeUnit is the resolution of a time window.
type TimeUnit int

const (
	UnitMinutes TimeUnit = iota
	UnitHours
	UnitDays
)

func (u TimeUnit) String() string {
	switch u {
	case UnitHours:
		return "Hours"
	case UnitDays:
		return "Days"
	default:
		return "Minutes"
	}
}

// TimeWindow is a duration literal like `5m` or `24 hours`. A bare number
// defaults to minutes.
type TimeWindow struct {
	Value int
	Unit  TimeUnit
}

// ConvergeRule is the AST of a CONVERGE statement.
type ConvergeRule struct {
	Where     Condition
	GroupBy   []string
	Window    TimeWindow
	Threshold int
}

// EventDef is one EVENT clause of a CORRELATE statement.
type EventDef struct {
	Alias string
	Where Condition
}

// JoinClause equates a field of one event with a field of another.
// Connector links the clause to the previous one, as in Condition.
type JoinClause struct {
	Left      FieldRef
	Right     FieldRef
	Connector LogicalOp
}

// CorrelateRule is the AST of a CORRELATE statement.
type CorrelateRule struct {
	Events      []EventDef
	JoinOn      []JoinClause
	Window      TimeWindow
	Severity    int
	Name        string
	Description string
}
