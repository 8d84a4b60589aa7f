package dsl

import (
	"fmt"
	"strconv"
)

// ParseConverge parses a CONVERGE statement. Clause order is fixed:
// WHERE, GROUP BY, WINDOW, THRESHOLD.
func ParseConverge(input string) (*ConvergeRule, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	if err := p.expectKeyword("CONVERGE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	where, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("GROUP"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}
	groupBy, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("WINDOW"); err != nil {
		return nil, err
	}
	window, err := p.parseWindow()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("THRESHOLD"); err != nil {
		return nil, err
	}
	threshold, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}

	return &ConvergeRule{
		Where:     where,
		GroupBy:   groupBy,
		Window:    window,
		Threshold: threshold,
	}, nil
}

// ParseCorrelate parses a CORRELATE statement. At least two EVENT clauses
// are required; a single event is a structural error, not a validation
// one.
func ParseCorrelate(input string) (*CorrelateRule, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	if err := p.expectKeyword("CORRELATE"); err != nil {
		return nil, err
	}

	var events []EventDef
	for p.atKeyword("EVENT") {
		p.advance()
		alias, err := p.expectIdent("event alias")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("WHERE"); err != nil {
			return nil, err
		}
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		events = append(events, EventDef{Alias: alias, Where: cond})
	}
	if len(events) == 0 {
		return nil, p.errorf("expected EVENT, got %s", p.curDesc())
	}
	if len(events) < 2 {
		return nil, p.errorf("CORRELATE requires at least 2 EVENT definitions, got %d", len(events))
	}

	if err := p.expectKeyword("JOIN"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	joinOn, err := p.parseJoin()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("WINDOW"); err != nil {
		return nil, err
	}
	window, err := p.parseWindow()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("GENERATE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SEVERITY"); err != nil {
		return nil, err
	}
	severity, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("NAME"); err != nil {
		return nil, err
	}
	name, err := p.expectString("NAME")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("DESCRIPTION"); err != nil {
		return nil, err
	}
	description, err := p.expectString("DESCRIPTION")
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}

	return &CorrelateRule{
		Events:      events,
		JoinOn:      joinOn,
		Window:      window,
		Severity:    severity,
		Name:        name,
		Description: description,
	}, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// atKeyword reports whether the current token is the given keyword.
// Keywords are contextual: the same spelling is an ordinary identifier
// anywhere a field name or value is expected.
func (p *parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	return &ParseError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) curDesc() string {
	return tokenDesc(p.cur())
}

func tokenDesc(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf("expected %s, got %s", kw, p.curDesc())
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent(what string) (string, error) {
	if p.cur().kind != tokIdent {
		return "", p.errorf("expected %s, got %s", what, p.curDesc())
	}
	return p.advance().text, nil
}

func (p *parser) expectString(after string) (string, error) {
	if p.cur().kind != tokString {
		return "", p.errorf("expected string after %s, got %s", after, p.curDesc())
	}
	return p.advance().text, nil
}

func (p *parser) expectEOF() error {
	if p.cur().kind != tokEOF {
		return p.errorf("unexpected input after rule: %s", p.curDesc())
	}
	return nil
}

func (p *parser) parseNumber() (int, error) {
	if p.cur().kind != tokNumber {
		return 0, p.errorf("expected number, got %s", p.curDesc())
	}
	t := p.advance()
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, &ParseError{Line: t.line, Col: t.col, Msg: fmt.Sprintf("number %s out of range", t.text)}
	}
	return n, nil
}

// parseCondition reads `clause (AND|OR clause)*`. The clause list is
// flat; each clause remembers the connector that precedes it.
func (p *parser) parseCondition() (Condition, error) {
	first, err := p.parseClause()
	if err != nil {
		return Condition{}, err
	}
	clauses := []Clause{first}
	for p.atKeyword(string(LogicAnd)) || p.atKeyword(string(LogicOr)) {
		conn := LogicalOp(p.advance().text)
		c, err := p.parseClause()
		if err != nil {
			return Condition{}, err
		}
		c.Connector = conn
		clauses = append(clauses, c)
	}
	return Condition{Clauses: clauses}, nil
}

func (p *parser) parseClause() (Clause, error) {
	field, err := p.parseFieldRef()
	if err != nil {
		return Clause{}, err
	}
	op, err := p.parseOperator()
	if err != nil {
		return Clause{}, err
	}

	var value Value
	if op == OpIn {
		value, err = p.parseValueList()
	} else {
		value, err = p.parseValue()
	}
	if err != nil {
		return Clause{}, err
	}
	return Clause{Field: field, Op: op, Value: value}, nil
}

func (p *parser) parseFieldRef() (FieldRef, error) {
	name, err := p.expectIdent("field name")
	if err != nil {
		return FieldRef{}, err
	}
	if p.cur().kind != tokDot {
		return FieldRef{Name: name}, nil
	}
	p.advance()
	qualified, err := p.expectIdent("field name after '.'")
	if err != nil {
		return FieldRef{}, err
	}
	return FieldRef{EventAlias: name, Name: qualified}, nil
}

func (p *parser) parseOperator() (Operator, error) {
	t := p.cur()
	if t.kind == tokOperator {
		p.advance()
		return Operator(t.text), nil
	}
	if t.kind == tokIdent {
		switch t.text {
		case string(OpContains), string(OpRegex), string(OpIn):
			p.advance()
			return Operator(t.text), nil
		}
	}
	return "", p.errorf("expected comparison operator, got %s", p.curDesc())
}

func (p *parser) parseValue() (Value, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return Value{}, p.errorf("number %s out of range", t.text)
		}
		p.advance()
		return Value{Kind: NumberValue, Number: n}, nil
	case tokString:
		p.advance()
		return Value{Kind: StringValue, Str: t.text}, nil
	case tokIdent:
		// Bare word, e.g. `protocol == TCP`.
		p.advance()
		return Value{Kind: StringValue, Str: t.text}, nil
	default:
		return Value{}, p.errorf("expected value, got %s", p.curDesc())
	}
}

func (p *parser) parseValueList() (Value, error) {
	if p.cur().kind != tokLParen {
		return Value{}, p.errorf("expected '(' after IN, got %s", p.curDesc())
	}
	p.advance()

	var list []Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		list = append(list, v)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().kind != tokRParen {
		return Value{}, p.errorf("expected ')' to close IN list, got %s", p.curDesc())
	}
	p.advance()
	return Value{Kind: ListValue, List: list}, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	first, err := p.expectIdent("field name")
	if err != nil {
		return nil, err
	}
	names := []string{first}
	for p.cur().kind == tokComma {
		p.advance()
		name, err := p.expectIdent("field name")
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// parseWindow reads a number with an optional unit suffix. `5m`,
// `5 minutes` and a bare `5` all mean five minutes.
func (p *parser) parseWindow() (TimeWindow, error) {
	n, err := p.parseNumber()
	if err != nil {
		return TimeWindow{}, err
	}
	unit := UnitMinutes
	if p.cur().kind == tokIdent {
		switch p.cur().text {
		case "m", "minutes":
			unit = UnitMinutes
			p.advance()
		case "h", "hours":
			unit = UnitHours
			p.advance()
		case "d", "days":
			unit = UnitDays
			p.advance()
		}
	}
	return TimeWindow{Value: n, Unit: unit}, nil
}

// parseJoin reads `fieldRef == fieldRef (AND|OR fieldRef == fieldRef)*`.
// Join clauses only support equality.
func (p *parser) parseJoin() ([]JoinClause, error) {
	first, err := p.parseJoinClause()
	if err != nil {
		return nil, err
	}
	clauses := []JoinClause{first}
	for p.atKeyword(string(LogicAnd)) || p.atKeyword(string(LogicOr)) {
		conn := LogicalOp(p.advance().text)
		c, err := p.parseJoinClause()
		if err != nil {
			return nil, err
		}
		c.Connector = conn
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func (p *parser) parseJoinClause() (JoinClause, error) {
	left, err := p.parseFieldRef()
	if err != nil {
		return JoinClause{}, err
	}
	t := p.cur()
	if t.kind != tokOperator || t.text != string(OpEqual) {
		return JoinClause{}, p.errorf("JOIN ON requires '==', got %s", p.curDesc())
	}
	p.advance()
	right, err := p.parseFieldRef()
	if err != nil {
		return JoinClause{}, err
	}
	return JoinClause{Left: left, Right: right}, nil
}
