package liquid

import (
	"fmt"
	"strings"
)

// ForLoop is the forloop object. It is advanced once per iteration rather
// than rebuilt.
type ForLoop struct {
	Name    string
	Length  int
	Index   int
	Index0  int
	RIndex  int
	RIndex0 int
	First   bool
	Last    bool
	Parent  *ForLoop
}

// NewForLoop prepares a loop of length items positioned before the first
// iteration.
func NewForLoop(name string, length int, parent *ForLoop) *ForLoop {
	return &ForLoop{
		Name:    name,
		Length:  length,
		Index:   0,
		Index0:  -1,
		RIndex:  length + 1,
		RIndex0: length,
		Parent:  parent,
	}
}

// Advance moves to the next iteration.
func (f *ForLoop) Advance() {
	f.Index++
	f.Index0++
	f.RIndex--
	f.RIndex0--
	f.First = f.Index == 1
	f.Last = f.RIndex == 1
}

func (f *ForLoop) Get(key string) (any, bool) {
	switch key {
	case "index":
		return f.Index, true
	case "index0":
		return f.Index0, true
	case "rindex":
		return f.RIndex, true
	case "rindex0":
		return f.RIndex0, true
	case "first":
		return f.First, true
	case "last":
		return f.Last, true
	case "length":
		return f.Length, true
	case "name":
		return f.Name, true
	case "parentloop":
		if f.Parent == nil {
			return nil, true
		}
		return f.Parent, true
	}
	return nil, false
}

// Modifiers slice a loop collection. They are applied in the fixed order
// offset, limit, reversed regardless of how the author ordered them.
type Modifiers struct {
	Offset   int
	Limit    int
	HasLimit bool
	Reversed bool
}

// Apply returns the sliced items.
func (m Modifiers) Apply(items []any) []any {
	if m.Offset > 0 {
		if m.Offset >= len(items) {
			items = nil
		} else {
			items = items[m.Offset:]
		}
	}
	if m.HasLimit {
		limit := m.Limit
		if limit < 0 {
			limit = 0
		}
		if limit < len(items) {
			items = items[:limit]
		}
	}
	if m.Reversed {
		out := make([]any, len(items))
		for i, item := range items {
			out[len(items)-1-i] = item
		}
		items = out
	}
	return items
}

type forNode struct {
	variable       string
	collection     Expr
	offset         Expr
	offsetContinue bool
	limit          Expr
	reversed       bool
	body           []Node
	elseBody       []Node
}

func parseFor(p *Parser, tok *Token) (Node, error) {
	m, err := NewMarkup(tok.Markup)
	if err != nil {
		return nil, err
	}
	node := &forNode{}
	if node.variable, err = m.Ident(); err != nil {
		return nil, err
	}
	if !m.AcceptWord("in") {
		return nil, fmt.Errorf("for: expected 'in' in %q", tok.Markup)
	}
	if node.collection, err = m.Value(); err != nil {
		return nil, err
	}
	for !m.Done() {
		m.AcceptComma()
		switch {
		case m.AcceptWord("reversed"):
			node.reversed = true
		case m.PeekKeyword():
			key, _ := m.Ident()
			m.AcceptColon()
			if key == "offset" && m.AcceptWord("continue") {
				node.offsetContinue = true
				continue
			}
			v, err := m.Value()
			if err != nil {
				return nil, err
			}
			switch key {
			case "offset":
				node.offset = v
			case "limit":
				node.limit = v
			default:
				return nil, fmt.Errorf("for: unknown modifier %q", key)
			}
		default:
			return nil, fmt.Errorf("for: unexpected %q in %q", m.peek().raw, tok.Markup)
		}
	}

	body, closing, err := p.ParseBody("else", "endfor")
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
	}
	node.body = body
	if closing.Name == "else" {
		if node.elseBody, _, err = p.ParseBody("endfor"); err != nil {
			return nil, fmt.Errorf("tag %q: %w", tok.Name, err)
		}
	}
	return node, nil
}

func (n *forNode) loopKey() string {
	return "liquid.for." + n.variable + "-" + n.collection.String()
}

func (n *forNode) Render(s *State, w *strings.Builder) error {
	coll, err := s.EvalResolved(n.collection)
	if err != nil {
		return err
	}
	items := Enumerate(coll)

	mods := Modifiers{Reversed: n.reversed}
	if n.offsetContinue {
		if v, ok := s.Register(n.loopKey()); ok {
			mods.Offset, _ = v.(int)
		}
	} else if n.offset != nil {
		v, err := s.EvalResolved(n.offset)
		if err != nil {
			return err
		}
		mods.Offset, _ = ToInt(v)
	}
	if n.limit != nil {
		v, err := s.EvalResolved(n.limit)
		if err != nil {
			return err
		}
		mods.Limit, _ = ToInt(v)
		mods.HasLimit = true
	}
	items = mods.Apply(items)
	s.SetRegister(n.loopKey(), mods.Offset+len(items))

	if len(items) == 0 {
		return RenderNodes(s, w, n.elseBody)
	}

	var parent *ForLoop
	if len(s.loops) > 0 {
		parent = s.loops[len(s.loops)-1]
	}
	loop := NewForLoop(n.variable+"-"+n.collection.String(), len(items), parent)
	s.loops = append(s.loops, loop)
	defer func() { s.loops = s.loops[:len(s.loops)-1] }()

	scope := map[string]any{"forloop": loop}
	s.Push(scope)
	defer s.Pop()

	for _, item := range items {
		loop.Advance()
		scope[n.variable] = item
		err := RenderNodes(s, w, n.body)
		if err == errBreak {
			break
		}
		if err != nil && err != errContinue {
			return err
		}
	}
	return nil
}
