package liquid

import (
	"context"
	"errors"
)

// MaxDepth bounds nested include/render/section evaluation.
const MaxDepth = 32

var (
	errBreak    = errors.New("liquid: break outside loop")
	errContinue = errors.New("liquid: continue outside loop")
)

// Result carries the out-of-band values a render produces besides its
// output text.
type Result struct {
	Output string
	// Layout is the name chosen by a layout tag; LayoutSet distinguishes an
	// explicit "none" from no tag at all.
	Layout    string
	LayoutSet bool
	// Schema is the verbatim body of the last schema tag.
	Schema    string
	HasSchema bool
}

// State is the evaluation state of one render. It is never shared across
// concurrent renders; isolated child states are created for the render tag.
type State struct {
	Ctx context.Context

	engine    *Engine
	globals   map[string]any
	scopes    []map[string]any
	registers map[string]any
	counters  map[string]int
	cycles    map[string]int
	result    *Result
	loops     []*ForLoop
	depth     int
	file      string
	editor    bool
}

func newState(ctx context.Context, e *Engine, opts RenderOptions, data map[string]any) *State {
	if ctx == nil {
		ctx = context.Background()
	}
	globals := opts.Globals
	if globals == nil {
		globals = map[string]any{}
	}
	scope := make(map[string]any, len(data))
	for k, v := range data {
		scope[k] = v
	}
	registers := opts.Registers
	if registers == nil {
		registers = map[string]any{}
	}
	return &State{
		Ctx:       ctx,
		engine:    e,
		globals:   globals,
		scopes:    []map[string]any{scope},
		registers: registers,
		counters:  map[string]int{},
		cycles:    map[string]int{},
		result:    &Result{},
		file:      opts.File,
		editor:    opts.EditorMode,
		depth:     opts.depth,
	}
}

// Engine returns the owning engine.
func (s *State) Engine() *Engine { return s.engine }

// Get looks a name up through the scope stack, innermost first, then the
// globals.
func (s *State) Get(name string) (any, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v, true
		}
	}
	v, ok := s.globals[name]
	return v, ok
}

// Set assigns name in the outermost scope of the current frame so the value
// survives loop scopes.
func (s *State) Set(name string, value any) {
	s.scopes[0][name] = value
}

// SetLocal assigns name in the innermost scope.
func (s *State) SetLocal(name string, value any) {
	s.scopes[len(s.scopes)-1][name] = value
}

// Push adds a scope.
func (s *State) Push(scope map[string]any) {
	if scope == nil {
		scope = map[string]any{}
	}
	s.scopes = append(s.scopes, scope)
}

// Pop removes the innermost scope. The base scope is never removed.
func (s *State) Pop() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// Globals returns the globally injected values.
func (s *State) Globals() map[string]any { return s.globals }

// Register reads a render register.
func (s *State) Register(key string) (any, bool) {
	v, ok := s.registers[key]
	return v, ok
}

// SetRegister writes a render register.
func (s *State) SetRegister(key string, value any) {
	s.registers[key] = value
}

// File is the path of the template being rendered.
func (s *State) File() string { return s.file }

// EditorMode reports whether the render targets the visual editor.
func (s *State) EditorMode() bool { return s.editor }

// Depth is the current include/render nesting depth.
func (s *State) Depth() int { return s.depth }

// Result exposes the render result being filled.
func (s *State) Result() *Result { return s.result }

// SetLayout records the layout chosen by the template.
func (s *State) SetLayout(name string) {
	s.result.Layout = name
	s.result.LayoutSet = true
}

// SetSchema records a captured schema body.
func (s *State) SetSchema(body string) {
	s.result.Schema = body
	s.result.HasSchema = true
}

// Isolated returns a child state that sees only scope, the globals, and the
// shared registers. file becomes the child's current file.
func (s *State) Isolated(scope map[string]any, file string) *State {
	if scope == nil {
		scope = map[string]any{}
	}
	return &State{
		Ctx:       s.Ctx,
		engine:    s.engine,
		globals:   s.globals,
		scopes:    []map[string]any{scope},
		registers: s.registers,
		counters:  map[string]int{},
		cycles:    map[string]int{},
		result:    s.result,
		depth:     s.depth + 1,
		file:      file,
		editor:    s.editor,
	}
}

// WithFile runs fn with file as the current file and depth incremented.
func (s *State) WithFile(file string, fn func() error) error {
	prevFile := s.file
	s.file = file
	s.depth++
	defer func() {
		s.file = prevFile
		s.depth--
	}()
	return fn()
}

// Eval evaluates e.
func (s *State) Eval(e Expr) (any, error) {
	return e.Eval(s)
}

// EvalResolved evaluates e and forces lazy results.
func (s *State) EvalResolved(e Expr) (any, error) {
	v, err := e.Eval(s)
	if err != nil {
		return nil, err
	}
	return Resolve(s.Ctx, v)
}

func (s *State) warn(msg string) {
	if s.engine.opts.OnWarning != nil {
		s.engine.opts.OnWarning(s.Ctx, s.file, msg)
	}
}

// Warn reports a non-fatal problem through the engine's warning hook.
func (s *State) Warn(msg string) { s.warn(msg) }
