package liquid

import (
	"fmt"
	"strings"
)

func registerCoreTags(e *Engine) {
	e.MustRegisterTag("if", parseIf(false))
	e.MustRegisterTag("unless", parseIf(true))
	e.MustRegisterTag("case", parseCase)
	e.MustRegisterTag("for", parseFor)
	e.MustRegisterTag("assign", parseAssign)
	e.MustRegisterTag("capture", parseCapture)
	e.MustRegisterTag("echo", parseEcho)
	e.MustRegisterTag("liquid", parseLiquid)
	e.MustRegisterTag("increment", parseCounter(1))
	e.MustRegisterTag("decrement", parseCounter(-1))
	e.MustRegisterTag("cycle", parseCycle)
	e.MustRegisterTag("break", func(*Parser, *Token) (Node, error) {
		return NodeFunc(func(*State, *strings.Builder) error { return errBreak }), nil
	})
	e.MustRegisterTag("continue", func(*Parser, *Token) (Node, error) {
		return NodeFunc(func(*State, *strings.Builder) error { return errContinue }), nil
	})
	must(e.RegisterRawTag("raw", func(_ *Parser, tok *Token) (Node, error) {
		return &textNode{text: tok.Body}, nil
	}))
	must(e.RegisterRawTag("comment", func(*Parser, *Token) (Node, error) {
		return nil, nil
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

type condBranch struct {
	cond   Expr
	negate bool
	body   []Node
}

type ifNode struct {
	branches []condBranch
	elseBody []Node
}

func (n *ifNode) Render(s *State, w *strings.Builder) error {
	for _, b := range n.branches {
		v, err := s.EvalResolved(b.cond)
		if err != nil {
			return err
		}
		if Truthy(v) != b.negate {
			return RenderNodes(s, w, b.body)
		}
	}
	return RenderNodes(s, w, n.elseBody)
}

func parseCondition(markup string) (Expr, error) {
	m, err := NewMarkup(markup)
	if err != nil {
		return nil, err
	}
	cond, err := m.Expression()
	if err != nil {
		return nil, err
	}
	return cond, m.Expect()
}

func parseIf(negate bool) TagParser {
	return func(p *Parser, tok *Token) (Node, error) {
		cond, err := parseCondition(tok.Markup)
		if err != nil {
			return nil, err
		}
		node := &ifNode{}
		current := condBranch{cond: cond, negate: negate}
		end := "end" + tok.Name
		for {
			body, closing, err := p.ParseBody("elsif", "else", end)
			if err != nil {
				return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
			}
			current.body = body
			node.branches = append(node.branches, current)
			switch closing.Name {
			case "elsif":
				cond, err := parseCondition(closing.Markup)
				if err != nil {
					return nil, err
				}
				current = condBranch{cond: cond}
			case "else":
				elseBody, _, err := p.ParseBody(end)
				if err != nil {
					return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
				}
				node.elseBody = elseBody
				return node, nil
			default:
				return node, nil
			}
		}
	}
}

func parseAssign(_ *Parser, tok *Token) (Node, error) {
	m, err := NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	name, err := m.Ident()
	if err != nil {
		return nil, err
	}
	if !m.AcceptAssign() {
		return nil, fmt.Errorf("assign: expected = in %q", tok.Markup)
	}
	expr, err := m.FilteredExpression()
	if err != nil {
		return nil, err
	}
	if err := m.Expect(); err != nil {
		return nil, err
	}
	return NodeFunc(func(s *State, _ *strings.Builder) error {
		v, err := s.EvalResolved(expr)
		if err != nil {
			return err
		}
		s.Set(name, v)
		return nil
	}), nil
}

func parseCapture(p *Parser, tok *Token) (Node, error) {
	m, err := NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	name, err := m.Name()
	if err != nil {
		return nil, err
	}
	body, err := p.ParseBlock(tok)
	if err != nil {
		return nil, err
	}
	return NodeFunc(func(s *State, _ *strings.Builder) error {
		out, err := RenderToString(s, body)
		if err != nil {
			return err
		}
		s.Set(name, out)
		return nil
	}), nil
}

func parseEcho(_ *Parser, tok *Token) (Node, error) {
	if strings.TrimSpace(tok.Markup) == "" {
		return nil, nil
	}
	expr, err := ParseExpression(tok.Markup)
	if err != nil {
		return nil, err
	}
	return &outputNode{expr: expr, line: tok.Line}, nil
}

// parseLiquid treats each line of the markup as a tag.
func parseLiquid(p *Parser, tok *Token) (Node, error) {
	var tokens []Token
	inComment := false
	for i, line := range strings.Split(tok.Markup, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, markup := splitTag(line)
		if inComment {
			if name == "endcomment" {
				inComment = false
			}
			continue
		}
		if name == "comment" {
			inComment = true
			continue
		}
		tokens = append(tokens, Token{Kind: TokenTag, Name: name, Markup: markup, Line: tok.Line + i, Source: line})
	}
	sub := &Parser{engine: p.engine, tokens: tokens}
	nodes, _, err := sub.ParseBody()
	if err != nil {
		return nil, fmt.Errorf("liquid: %w", err)
	}
	return NodeFunc(func(s *State, w *strings.Builder) error {
		return RenderNodes(s, w, nodes)
	}), nil
}

func parseCounter(step int) TagParser {
	return func(_ *Parser, tok *Token) (Node, error) {
		m, err := NewMarkup(tok.Markup)
		if err != nil {
			return nil, err
		}
		name, err := m.Ident()
		if err != nil {
			return nil, err
		}
		return NodeFunc(func(s *State, w *strings.Builder) error {
			v := s.counters[name]
			if step < 0 {
				v--
				s.counters[name] = v
				w.WriteString(ToString(v))
				return nil
			}
			w.WriteString(ToString(v))
			s.counters[name] = v + 1
			return nil
		}), nil
	}
}

func parseCycle(_ *Parser, tok *Token) (Node, error) {
	m, err := NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	first, err := m.Value()
	if err != nil {
		return nil, err
	}
	var group Expr
	var values []Expr
	if m.AcceptColon() {
		group = first
	} else {
		values = append(values, first)
		if !m.AcceptComma() {
			if err := m.Expect(); err != nil {
				return nil, err
			}
		}
	}
	for !m.Done() {
		v, err := m.Value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if !m.AcceptComma() {
			break
		}
	}
	if err := m.Expect(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("cycle: no values in %q", tok.Markup)
	}
	key := tok.Markup
	return NodeFunc(func(s *State, w *strings.Builder) error {
		k := key
		if group != nil {
			g, err := s.EvalResolved(group)
			if err != nil {
				return err
			}
			k = "group:" + ToString(g)
		}
		i := s.cycles[k]
		s.cycles[k] = (i + 1) % len(values)
		v, err := s.EvalResolved(values[i])
		if err != nil {
			return err
		}
		w.WriteString(ToString(v))
		return nil
	}), nil
}
