package liquid

import (
	"fmt"
	"strings"
)

// EditorBlockClass marks case output keyed on a block when rendering for the
// visual editor.
const EditorBlockClass = "swell-block"

type whenBranch struct {
	values []Expr
	body   []Node
}

type caseNode struct {
	subject  Expr
	editor   bool
	branches []whenBranch
	elseBody []Node
	hasElse  bool
}

func parseCase(p *Parser, tok *Token) (Node, error) {
	m, err := NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	subject, err := m.Value()
	if err != nil {
		return nil, err
	}
	if err := m.Expect(); err != nil {
		return nil, err
	}
	node := &caseNode{subject: subject}
	if path, ok := Path(subject); ok && strings.HasPrefix(path, "block.") {
		node.editor = true
	}

	// anything before the first when is discarded
	_, closing, err := p.ParseBody("when", "else", "endcase")
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
	}
	for closing.Name != "endcase" {
		body, next, err := p.ParseBody("when", "else", "endcase")
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
		}
		switch closing.Name {
		case "when":
			values, err := parseWhenValues(closing.Markup)
			if err != nil {
				return nil, err
			}
			node.branches = append(node.branches, whenBranch{values: values, body: body})
		case "else":
			if !node.hasElse {
				node.elseBody = body
				node.hasElse = true
			}
		}
		closing = next
	}
	return node, nil
}

func parseWhenValues(markup string) ([]Expr, error) {
	m, err := NewMarkup(markup)
	if err != nil {
		return nil, err
	}
	var values []Expr
	for {
		v, err := m.Value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if m.AcceptComma() || m.AcceptWord("or") {
			continue
		}
		break
	}
	return values, m.Expect()
}

func (n *caseNode) Render(s *State, w *strings.Builder) error {
	subject, err := s.EvalResolved(n.subject)
	if err != nil {
		return err
	}
	body, matched, err := n.match(s, subject)
	if err != nil {
		return err
	}
	if !matched {
		if !n.hasElse {
			return nil
		}
		body = n.elseBody
	}
	if !n.editor || !s.EditorMode() {
		return RenderNodes(s, w, body)
	}
	w.WriteString(`<span class="` + EditorBlockClass + `">`)
	if err := RenderNodes(s, w, body); err != nil {
		return err
	}
	w.WriteString("</span>")
	return nil
}

func (n *caseNode) match(s *State, subject any) ([]Node, bool, error) {
	for _, b := range n.branches {
		for _, expr := range b.values {
			v, err := s.EvalResolved(expr)
			if err != nil {
				return nil, false, err
			}
			if Equal(subject, v) {
				return b.body, true, nil
			}
		}
	}
	return nil, false, nil
}
