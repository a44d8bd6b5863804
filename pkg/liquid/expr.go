package liquid

import (
	"fmt"
	"strconv"
	"strings"
)

type exprKind int

const (
	exprEOF exprKind = iota
	exprIdent
	exprString
	exprNumber
	exprDot
	exprLBracket
	exprRBracket
	exprLParen
	exprRParen
	exprRange
	exprComma
	exprColon
	exprPipe
	exprCompare
	exprAssign
)

type exprToken struct {
	kind exprKind
	raw  string
}

func tokenizeMarkup(input string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '\'' || ch == '"':
			end := strings.IndexByte(input[i+1:], ch)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string in %q", input)
			}
			tokens = append(tokens, exprToken{kind: exprString, raw: input[i+1 : i+1+end]})
			i += end + 2
		case ch == '.' && i+1 < len(input) && input[i+1] == '.':
			tokens = append(tokens, exprToken{kind: exprRange, raw: ".."})
			i += 2
		case ch == '.':
			tokens = append(tokens, exprToken{kind: exprDot, raw: "."})
			i++
		case ch == '[':
			tokens = append(tokens, exprToken{kind: exprLBracket, raw: "["})
			i++
		case ch == ']':
			tokens = append(tokens, exprToken{kind: exprRBracket, raw: "]"})
			i++
		case ch == '(':
			tokens = append(tokens, exprToken{kind: exprLParen, raw: "("})
			i++
		case ch == ')':
			tokens = append(tokens, exprToken{kind: exprRParen, raw: ")"})
			i++
		case ch == ',':
			tokens = append(tokens, exprToken{kind: exprComma, raw: ","})
			i++
		case ch == ':':
			tokens = append(tokens, exprToken{kind: exprColon, raw: ":"})
			i++
		case ch == '|':
			tokens = append(tokens, exprToken{kind: exprPipe, raw: "|"})
			i++
		case ch == '=' || ch == '!' || ch == '<' || ch == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, exprToken{kind: exprCompare, raw: input[i : i+2]})
				i += 2
				continue
			}
			if ch == '<' && i+1 < len(input) && input[i+1] == '>' {
				tokens = append(tokens, exprToken{kind: exprCompare, raw: "!="})
				i += 2
				continue
			}
			switch ch {
			case '=':
				tokens = append(tokens, exprToken{kind: exprAssign, raw: "="})
			case '<', '>':
				tokens = append(tokens, exprToken{kind: exprCompare, raw: string(ch)})
			default:
				return nil, fmt.Errorf("unexpected %q in %q", ch, input)
			}
			i++
		case isDigit(ch) || (ch == '-' && i+1 < len(input) && isDigit(input[i+1])):
			start := i
			i++
			for i < len(input) && (isDigit(input[i]) || (input[i] == '.' && i+1 < len(input) && isDigit(input[i+1]))) {
				i++
			}
			tokens = append(tokens, exprToken{kind: exprNumber, raw: input[start:i]})
		case isIdentStart(ch):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			if i < len(input) && input[i] == '?' {
				i++
			}
			tokens = append(tokens, exprToken{kind: exprIdent, raw: input[start:i]})
		default:
			return nil, fmt.Errorf("unexpected %q in %q", ch, input)
		}
	}
	return tokens, nil
}

func isDigit(ch byte) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch byte) bool { return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }
func isIdentPart(ch byte) bool  { return isIdentStart(ch) || isDigit(ch) || ch == '-' }

// Markup is a cursor over a tag's argument string. Custom tags use it to
// read names, expressions, and keyword arguments.
type Markup struct {
	src    string
	tokens []exprToken
	pos    int
}

// NewMarkup tokenizes src.
func NewMarkup(src string) (*Markup, error) {
	tokens, err := tokenizeMarkup(src)
	if err != nil {
		return nil, err
	}
	return &Markup{src: src, tokens: tokens}, nil
}

func (m *Markup) peek() exprToken {
	if m.pos >= len(m.tokens) {
		return exprToken{kind: exprEOF}
	}
	return m.tokens[m.pos]
}

func (m *Markup) peekAt(offset int) exprToken {
	if m.pos+offset >= len(m.tokens) {
		return exprToken{kind: exprEOF}
	}
	return m.tokens[m.pos+offset]
}

func (m *Markup) next() exprToken {
	tok := m.peek()
	if m.pos < len(m.tokens) {
		m.pos++
	}
	return tok
}

// Done reports whether every token was consumed.
func (m *Markup) Done() bool { return m.pos >= len(m.tokens) }

// Source returns the raw markup.
func (m *Markup) Source() string { return m.src }

// PeekWord reports whether the next token is the identifier word.
func (m *Markup) PeekWord(word string) bool {
	tok := m.peek()
	return tok.kind == exprIdent && tok.raw == word
}

// AcceptWord consumes the identifier word if present.
func (m *Markup) AcceptWord(word string) bool {
	if m.PeekWord(word) {
		m.pos++
		return true
	}
	return false
}

// AcceptComma consumes a comma if present.
func (m *Markup) AcceptComma() bool {
	if m.peek().kind == exprComma {
		m.pos++
		return true
	}
	return false
}

// AcceptColon consumes a colon if present.
func (m *Markup) AcceptColon() bool {
	if m.peek().kind == exprColon {
		m.pos++
		return true
	}
	return false
}

// AcceptAssign consumes an = if present.
func (m *Markup) AcceptAssign() bool {
	if m.peek().kind == exprAssign {
		m.pos++
		return true
	}
	return false
}

// PeekKeyword reports whether the next tokens are `name:`.
func (m *Markup) PeekKeyword() bool {
	return m.peek().kind == exprIdent && m.peekAt(1).kind == exprColon
}

// Ident reads a bare identifier.
func (m *Markup) Ident() (string, error) {
	tok := m.next()
	if tok.kind != exprIdent {
		return "", fmt.Errorf("expected identifier in %q", m.src)
	}
	return tok.raw, nil
}

// Name reads a quoted or bare template name.
func (m *Markup) Name() (string, error) {
	tok := m.next()
	switch tok.kind {
	case exprString, exprIdent:
		return tok.raw, nil
	}
	return "", fmt.Errorf("expected name in %q", m.src)
}

// PeekString reports whether the next token is a quoted string.
func (m *Markup) PeekString() bool { return m.peek().kind == exprString }

// Value reads a literal, range, or variable path.
func (m *Markup) Value() (Expr, error) { return m.parsePrimary() }

// Expression reads a condition: comparisons joined by and/or.
func (m *Markup) Expression() (Expr, error) { return m.parseCondition() }

// FilteredExpression reads a condition followed by | filters.
func (m *Markup) FilteredExpression() (Expr, error) {
	base, err := m.parseCondition()
	if err != nil {
		return nil, err
	}
	return m.parseFilters(base)
}

// KeywordArg is one `name: value` pair.
type KeywordArg struct {
	Name  string
	Value Expr
}

// KeywordArgs reads `k: v` pairs separated by optional commas until the end
// of the markup or a token that does not start a pair.
func (m *Markup) KeywordArgs() ([]KeywordArg, error) {
	var out []KeywordArg
	for {
		m.AcceptComma()
		if !m.PeekKeyword() {
			return out, nil
		}
		name := m.next().raw
		m.next()
		value, err := m.parseCondition()
		if err != nil {
			return nil, err
		}
		out = append(out, KeywordArg{Name: name, Value: value})
	}
}

// Expect fails when tokens remain.
func (m *Markup) Expect() error {
	if !m.Done() {
		return fmt.Errorf("unexpected %q in %q", m.peek().raw, m.src)
	}
	return nil
}

func (m *Markup) parseFilters(base Expr) (Expr, error) {
	var filters []filterCall
	for m.peek().kind == exprPipe {
		m.next()
		name, err := m.Ident()
		if err != nil {
			return nil, fmt.Errorf("expected filter name in %q", m.src)
		}
		call := filterCall{name: name}
		if m.AcceptColon() {
			for {
				if m.PeekKeyword() {
					key := m.next().raw
					m.next()
					v, err := m.parseComparison()
					if err != nil {
						return nil, err
					}
					call.kwargs = append(call.kwargs, KeywordArg{Name: key, Value: v})
				} else {
					v, err := m.parseComparison()
					if err != nil {
						return nil, err
					}
					call.args = append(call.args, v)
				}
				if !m.AcceptComma() {
					break
				}
			}
		}
		filters = append(filters, call)
	}
	if len(filters) == 0 {
		return base, nil
	}
	return &filteredExpr{base: base, filters: filters}, nil
}

func (m *Markup) parseCondition() (Expr, error) {
	left, err := m.parseComparison()
	if err != nil {
		return nil, err
	}
	if m.PeekWord("and") || m.PeekWord("or") {
		op := m.next().raw
		right, err := m.parseCondition()
		if err != nil {
			return nil, err
		}
		return &logicalExpr{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (m *Markup) parseComparison() (Expr, error) {
	left, err := m.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := m.peek()
	switch {
	case tok.kind == exprCompare:
		m.next()
	case tok.kind == exprIdent && tok.raw == "contains":
		m.next()
	default:
		return left, nil
	}
	right, err := m.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &compareExpr{op: tok.raw, left: left, right: right}, nil
}

func (m *Markup) parsePrimary() (Expr, error) {
	tok := m.next()
	switch tok.kind {
	case exprString:
		return &literalExpr{value: tok.raw, src: strconv.Quote(tok.raw)}, nil
	case exprNumber:
		if !strings.Contains(tok.raw, ".") {
			n, err := strconv.Atoi(tok.raw)
			if err == nil {
				return &literalExpr{value: n, src: tok.raw}, nil
			}
		}
		f, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok.raw)
		}
		return &literalExpr{value: f, src: tok.raw}, nil
	case exprLParen:
		from, err := m.parsePrimary()
		if err != nil {
			return nil, err
		}
		if m.next().kind != exprRange {
			return nil, fmt.Errorf("expected .. in range in %q", m.src)
		}
		to, err := m.parsePrimary()
		if err != nil {
			return nil, err
		}
		if m.next().kind != exprRParen {
			return nil, fmt.Errorf("expected ) in %q", m.src)
		}
		return &rangeExpr{from: from, to: to}, nil
	case exprLBracket:
		m.pos--
		return m.parsePath("")
	case exprIdent:
		switch tok.raw {
		case "true":
			return &literalExpr{value: true, src: "true"}, nil
		case "false":
			return &literalExpr{value: false, src: "false"}, nil
		case "nil", "null":
			return &literalExpr{value: nil, src: tok.raw}, nil
		case "empty":
			if m.peek().kind != exprDot {
				return &literalExpr{value: Empty, src: "empty"}, nil
			}
		case "blank":
			if m.peek().kind != exprDot {
				return &literalExpr{value: Blank, src: "blank"}, nil
			}
		}
		return m.parsePath(tok.raw)
	}
	if tok.kind == exprEOF {
		return nil, fmt.Errorf("unexpected end of %q", m.src)
	}
	return nil, fmt.Errorf("unexpected %q in %q", tok.raw, m.src)
}

func (m *Markup) parsePath(root string) (Expr, error) {
	path := &pathExpr{root: root}
	for {
		switch m.peek().kind {
		case exprDot:
			m.next()
			tok := m.next()
			if tok.kind != exprIdent {
				return nil, fmt.Errorf("expected property after . in %q", m.src)
			}
			path.segments = append(path.segments, &literalExpr{value: tok.raw, src: tok.raw})
			path.names = append(path.names, tok.raw)
		case exprLBracket:
			m.next()
			idx, err := m.parseCondition()
			if err != nil {
				return nil, err
			}
			if m.next().kind != exprRBracket {
				return nil, fmt.Errorf("expected ] in %q", m.src)
			}
			path.segments = append(path.segments, idx)
			path.names = append(path.names, "["+idx.String()+"]")
		default:
			if root == "" && len(path.segments) == 0 {
				return nil, fmt.Errorf("empty path in %q", m.src)
			}
			return path, nil
		}
	}
}

// ParseExpression parses a filtered expression from src.
func ParseExpression(src string) (Expr, error) {
	m, err := NewMarkup(src)
	if err != nil {
		return nil, err
	}
	expr, err := m.FilteredExpression()
	if err != nil {
		return nil, err
	}
	if err := m.Expect(); err != nil {
		return nil, err
	}
	return expr, nil
}

// Expr is an evaluable expression.
type Expr interface {
	Eval(s *State) (any, error)
	String() string
}

type literalExpr struct {
	value any
	src   string
}

func (e *literalExpr) Eval(*State) (any, error) { return e.value, nil }
func (e *literalExpr) String() string         { return e.src }

type rangeExpr struct {
	from, to Expr
}

func (e *rangeExpr) Eval(s *State) (any, error) {
	from, err := s.EvalResolved(e.from)
	if err != nil {
		return nil, err
	}
	to, err := s.EvalResolved(e.to)
	if err != nil {
		return nil, err
	}
	a, _ := ToInt(from)
	b, _ := ToInt(to)
	return Range{From: a, To: b}, nil
}

func (e *rangeExpr) String() string { return "(" + e.from.String() + ".." + e.to.String() + ")" }

type pathExpr struct {
	root     string
	segments []Expr
	names    []string
}

// Path returns the dotted source path of e when it is a variable reference.
func Path(e Expr) (string, bool) {
	p, ok := e.(*pathExpr)
	if !ok {
		return "", false
	}
	return p.String(), true
}

func (e *pathExpr) String() string {
	var b strings.Builder
	b.WriteString(e.root)
	for _, n := range e.names {
		if strings.HasPrefix(n, "[") {
			b.WriteString(n)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(n)
	}
	return b.String()
}

func (e *pathExpr) Eval(s *State) (any, error) {
	var current any
	start := 0
	if e.root != "" {
		current, _ = s.Get(e.root)
	} else {
		key, err := s.EvalResolved(e.segments[0])
		if err != nil {
			return nil, err
		}
		current, _ = s.Get(ToString(key))
		start = 1
	}
	for _, seg := range e.segments[start:] {
		resolved, err := Resolve(s.Ctx, current)
		if err != nil {
			return nil, err
		}
		key, err := s.EvalResolved(seg)
		if err != nil {
			return nil, err
		}
		if f, ok := key.(float64); ok && f == float64(int(f)) {
			key = int(f)
		}
		current, _ = Index(resolved, key)
	}
	return current, nil
}

type compareExpr struct {
	op          string
	left, right Expr
}

func (e *compareExpr) String() string {
	return e.left.String() + " " + e.op + " " + e.right.String()
}

func (e *compareExpr) Eval(s *State) (any, error) {
	left, err := s.EvalResolved(e.left)
	if err != nil {
		return nil, err
	}
	right, err := s.EvalResolved(e.right)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "==":
		return Equal(left, right), nil
	case "!=":
		return !Equal(left, right), nil
	case "contains":
		return Contains(left, right), nil
	}
	c, ok := Compare(left, right)
	if !ok {
		return false, nil
	}
	switch e.op {
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "<=":
		return c <= 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown operator %q", e.op)
}

type logicalExpr struct {
	op          string
	left, right Expr
}

func (e *logicalExpr) String() string {
	return e.left.String() + " " + e.op + " " + e.right.String()
}

func (e *logicalExpr) Eval(s *State) (any, error) {
	left, err := s.EvalResolved(e.left)
	if err != nil {
		return nil, err
	}
	if e.op == "and" && !Truthy(left) {
		return false, nil
	}
	if e.op == "or" && Truthy(left) {
		return true, nil
	}
	right, err := s.EvalResolved(e.right)
	if err != nil {
		return nil, err
	}
	return Truthy(right), nil
}

type filterCall struct {
	name   string
	args   []Expr
	kwargs []KeywordArg
}

type filteredExpr struct {
	base    Expr
	filters []filterCall
}

func (e *filteredExpr) String() string {
	var b strings.Builder
	b.WriteString(e.base.String())
	for _, f := range e.filters {
		b.WriteString(" | ")
		b.WriteString(f.name)
	}
	return b.String()
}

func (e *filteredExpr) Eval(s *State) (any, error) {
	value, err := s.EvalResolved(e.base)
	if err != nil {
		return nil, err
	}
	for _, call := range e.filters {
		fn, ok := s.engine.filter(call.name)
		if !ok {
			if s.engine.opts.StrictFilters {
				return nil, fmt.Errorf("unknown filter %q", call.name)
			}
			s.warn(fmt.Sprintf("unknown filter %q", call.name))
			continue
		}
		args := make([]any, 0, len(call.args))
		for _, a := range call.args {
			v, err := s.EvalResolved(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		var kwargs map[string]any
		if len(call.kwargs) > 0 {
			kwargs = make(map[string]any, len(call.kwargs))
			for _, kw := range call.kwargs {
				v, err := s.EvalResolved(kw.Value)
				if err != nil {
					return nil, err
				}
				kwargs[kw.Name] = v
			}
		}
		value, err = fn(s, value, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", call.name, err)
		}
		value, err = Resolve(s.Ctx, value)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}
