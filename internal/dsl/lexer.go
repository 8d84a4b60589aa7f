package dsl

import "fmt"

// ParseError reports where in the rule text a parse failed. Positions are
// 1-based.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOperator // == != > >= < <=
	tokLParen
	tokRParen
	tokComma
	tokDot
)

// token is one lexeme. Keywords are plain identifiers; the parser
// recognizes them by text so field names may reuse keyword spellings
// outside keyword positions (`GROUP BY rule` is legal).
type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

// lex tokenizes the whole input up front; the parser works on the slice.
func lex(input string) ([]token, error) {
	l := &lexer{src: []rune(input), line: 1, col: 1}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &ParseError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.advance()
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line, col: l.col}, nil
	}

	line, col := l.line, l.col
	r := l.peek()

	switch {
	case isIdentStart(r):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.peek()) {
			l.advance()
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos]), line: line, col: col}, nil

	case isDigit(r):
		start := l.pos
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
		return token{kind: tokNumber, text: string(l.src[start:l.pos]), line: line, col: col}, nil

	case r == '"':
		l.advance()
		start := l.pos
		for l.pos < len(l.src) && l.peek() != '"' {
			l.advance()
		}
		if l.pos >= len(l.src) {
			return token{}, &ParseError{Line: line, Col: col, Msg: "unterminated string"}
		}
		text := string(l.src[start:l.pos])
		l.advance() // closing quote
		return token{kind: tokString, text: text, line: line, col: col}, nil
	}

	l.advance()
	switch r {
	case '(':
		return token{kind: tokLParen, text: "(", line: line, col: col}, nil
	case ')':
		return token{kind: tokRParen, text: ")", line: line, col: col}, nil
	case ',':
		return token{kind: tokComma, text: ",", line: line, col: col}, nil
	case '.':
		return token{kind: tokDot, text: ".", line: line, col: col}, nil
	case '=':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tokOperator, text: "==", line: line, col: col}, nil
		}
		return token{}, &ParseError{Line: line, Col: col, Msg: "unexpected '=', comparison is '=='"}
	case '!':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tokOperator, text: "!=", line: line, col: col}, nil
		}
		return token{}, &ParseError{Line: line, Col: col, Msg: "unexpected '!'"}
	case '>':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tokOperator, text: ">=", line: line, col: col}, nil
		}
		return token{kind: tokOperator, text: ">", line: line, col: col}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return token{kind: tokOperator, text: "<=", line: line, col: col}, nil
		}
		return token{kind: tokOperator, text: "<", line: line, col: col}, nil
	}

	return token{}, &ParseError{Line: line, Col: col, Msg: fmt.Sprintf("unexpected character %q", r)}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
