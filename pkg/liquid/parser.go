package liquid

import (
	"fmt"
	"strings"
)

// Node is a parsed template element.
type Node interface {
	Render(s *State, w *strings.Builder) error
}

// NodeFunc adapts a function to Node.
type NodeFunc func(s *State, w *strings.Builder) error

func (f NodeFunc) Render(s *State, w *strings.Builder) error { return f(s, w) }

// RenderNodes renders nodes in order.
func RenderNodes(s *State, w *strings.Builder, nodes []Node) error {
	for _, n := range nodes {
		if err := s.Ctx.Err(); err != nil {
			return err
		}
		if err := n.Render(s, w); err != nil {
			return err
		}
	}
	return nil
}

// RenderToString renders nodes into a fresh buffer.
func RenderToString(s *State, nodes []Node) (string, error) {
	var b strings.Builder
	err := RenderNodes(s, &b, nodes)
	return b.String(), err
}

type textNode struct{ text string }

func (n *textNode) Render(_ *State, w *strings.Builder) error {
	w.WriteString(n.text)
	return nil
}

type outputNode struct {
	expr Expr
	line int
}

func (n *outputNode) Render(s *State, w *strings.Builder) error {
	v, err := s.EvalResolved(n.expr)
	if err != nil {
		return lineError(n.line, err)
	}
	w.WriteString(ToString(v))
	return nil
}

// LineError attaches a source line to err.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

func lineError(line int, err error) error {
	if err == nil || err == errBreak || err == errContinue {
		return err
	}
	if _, ok := err.(*LineError); ok {
		return err
	}
	return &LineError{Line: line, Err: err}
}

// Parser turns tokens into nodes. Tag parsers call ParseBody to consume
// nested content.
type Parser struct {
	engine *Engine
	tokens []Token
	pos    int
}

// Engine returns the engine whose registry the parser uses.
func (p *Parser) Engine() *Engine { return p.engine }

// ParseBody parses nodes until a tag named in ends, which is returned
// without being rendered. With no ends it parses to the end of input.
func (p *Parser) ParseBody(ends ...string) ([]Node, *Token, error) {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := &p.tokens[p.pos]
		p.pos++
		switch tok.Kind {
		case TokenText:
			nodes = append(nodes, &textNode{text: tok.Source})
		case TokenOutput:
			if tok.Markup == "" {
				continue
			}
			expr, err := ParseExpression(tok.Markup)
			if err != nil {
				return nil, nil, lineError(tok.Line, err)
			}
			nodes = append(nodes, &outputNode{expr: expr, line: tok.Line})
		case TokenTag:
			for _, end := range ends {
				if tok.Name == end {
					return nodes, tok, nil
				}
			}
			if tok.Name == "#" {
				continue
			}
			def, ok := p.engine.tag(tok.Name)
			if !ok {
				return nil, nil, lineError(tok.Line, fmt.Errorf("unknown tag %q", tok.Name))
			}
			node, err := def.parse(p, tok)
			if err != nil {
				return nil, nil, lineError(tok.Line, err)
			}
			if node != nil {
				nodes = append(nodes, &lineNode{node: node, line: tok.Line})
			}
		}
	}
	if len(ends) > 0 {
		return nil, nil, fmt.Errorf("missing %s", strings.Join(ends, " or "))
	}
	return nodes, nil, nil
}

// ParseBlock parses the body of a block tag up to end<name>.
func (p *Parser) ParseBlock(tok *Token) ([]Node, error) {
	body, _, err := p.ParseBody("end" + tok.Name)
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
	}
	return body, nil
}

// ParseSource parses a fragment with this parser's registry.
func (p *Parser) ParseSource(src string) ([]Node, error) {
	tokens, err := lex(src, p.engine.rawTags())
	if err != nil {
		return nil, err
	}
	sub := &Parser{engine: p.engine, tokens: tokens}
	nodes, _, err := sub.ParseBody()
	return nodes, err
}

type lineNode struct {
	node Node
	line int
}

func (n *lineNode) Render(s *State, w *strings.Builder) error {
	return lineError(n.line, n.node.Render(s, w))
}
