package liquid

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func renderString(t *testing.T, e *Engine, src string, data map[string]any, opts RenderOptions) string {
	t.Helper()
	res, err := e.RenderString(context.Background(), src, data, opts)
	if err != nil {
		t.Fatalf("render %q: %v", src, err)
	}
	return res.Output
}

func TestTags(t *testing.T) {
	e := New()
	cases := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{name: "output", src: `{{ "hello" | upcase }}`, want: "HELLO"},
		{name: "assign with filter", src: `{% assign x = 3 | plus: 2 %}{{ x }}`, want: "5"},
		{name: "whitespace control", src: "a  {%- if true -%}  b  {%- endif -%}  c", want: "abc"},
		{name: "if elsif else", src: `{% if n > 5 %}big{% elsif n > 1 %}mid{% else %}small{% endif %}`, data: map[string]any{"n": 3}, want: "mid"},
		{name: "unless", src: `{% unless flag %}off{% else %}on{% endunless %}`, data: map[string]any{"flag": false}, want: "off"},
		{name: "and or", src: `{% if a and b or c %}yes{% endif %}`, data: map[string]any{"a": true, "b": false, "c": true}, want: "yes"},
		{name: "contains", src: `{% if tags contains "sale" %}sale{% endif %}`, data: map[string]any{"tags": []any{"new", "sale"}}, want: "sale"},
		{name: "empty literal", src: `{% if list == empty %}empty{% endif %}`, data: map[string]any{"list": []any{}}, want: "empty"},
		{name: "capture", src: `{% capture greeting %}Hi {{ name }}{% endcapture %}{{ greeting | upcase }}`, data: map[string]any{"name": "bo"}, want: "HI BO"},
		{name: "counters", src: `{% increment c %}{% increment c %}{% decrement d %}`, want: "01-1"},
		{name: "cycle", src: `{% for i in (1..4) %}{% cycle 'a', 'b' %}{% endfor %}`, want: "abab"},
		{name: "raw", src: `{% raw %}{{ x }}{% endraw %}`, want: "{{ x }}"},
		{name: "comment", src: `a{% comment %}{{ x }}{% endcomment %}b`, want: "ab"},
		{name: "inline comment", src: `a{% # note %}b`, want: "ab"},
		{name: "liquid tag", src: "{% liquid\nassign x = 2\nif x == 2\necho 'two'\nendif\n%}", want: "two"},
		{name: "bracket access", src: `{{ product["title"] }}{{ list[1] }}{{ list.size }}`, data: map[string]any{"product": map[string]any{"title": "Hat"}, "list": []any{"a", "b"}}, want: "Hatb2"},
		{name: "whole floats print as integers", src: `{{ n }}`, data: map[string]any{"n": 3.0}, want: "3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := renderString(t, e, tc.src, tc.data, RenderOptions{})
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestForLoop(t *testing.T) {
	e := New()
	cases := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{
			name: "forloop helpers",
			src:  `{% for x in items %}{{ forloop.index }}{{ forloop.index0 }}{{ forloop.rindex }}{% if forloop.first %}F{% endif %}{% if forloop.last %}L{% endif %},{% endfor %}`,
			data: map[string]any{"items": []any{"a", "b", "c"}},
			want: "103F,212,321L,",
		},
		{
			name: "modifiers applied offset then limit then reversed",
			src:  `{% for i in (1..6) reversed limit:2 offset:1 %}{{ i }}{% endfor %}`,
			want: "32",
		},
		{
			name: "offset continue",
			src:  `{% for i in (1..6) limit:2 %}{{ i }}{% endfor %}|{% for i in (1..6) offset:continue limit:2 %}{{ i }}{% endfor %}`,
			want: "12|34",
		},
		{
			name: "else on empty",
			src:  `{% for x in list %}x{% else %}none{% endfor %}`,
			data: map[string]any{"list": []any{}},
			want: "none",
		},
		{
			name: "break and continue",
			src:  `{% for i in (1..5) %}{% if i == 2 %}{% continue %}{% endif %}{% if i == 4 %}{% break %}{% endif %}{{ i }}{% endfor %}`,
			want: "13",
		},
		{
			name: "parentloop",
			src:  `{% for a in (1..2) %}{% for b in (1..2) %}{{ forloop.parentloop.index }}{{ forloop.index }} {% endfor %}{% endfor %}`,
			want: "11 12 21 22 ",
		},
		{
			name: "objects enumerate as id entries",
			src:  `{% for e in obj %}{{ e.id }}={{ e.value }};{% endfor %}`,
			data: map[string]any{"obj": map[string]any{"b": 2, "a": 1}},
			want: "a=1;b=2;",
		},
		{
			name: "object values spread into entries",
			src:  `{% for e in obj %}{{ e.id }}:{{ e.title }} {% endfor %}`,
			data: map[string]any{"obj": map[string]any{"x": map[string]any{"title": "X"}}},
			want: "x:X ",
		},
		{
			name: "string iterates once",
			src:  `{% for s in word %}[{{ s }}]{% endfor %}`,
			data: map[string]any{"word": "hi"},
			want: "[hi]",
		},
		{
			name: "assign inside loop survives",
			src:  `{% for i in (1..3) %}{% assign last = i %}{% endfor %}{{ last }}`,
			want: "3",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := renderString(t, e, tc.src, tc.data, RenderOptions{})
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestForLoopAdvanceIsIncremental(t *testing.T) {
	loop := NewForLoop("x", 3, nil)
	var got [][]any
	for i := 0; i < 3; i++ {
		loop.Advance()
		got = append(got, []any{loop.Index, loop.Index0, loop.RIndex, loop.RIndex0, loop.First, loop.Last})
	}
	want := [][]any{
		{1, 0, 3, 2, true, false},
		{2, 1, 2, 1, false, false},
		{3, 2, 1, 0, false, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("forloop mismatch (-want +got):\n%s", diff)
	}
}

func TestCase(t *testing.T) {
	e := New()
	src := `{% case x %}{% when 1, 2 %}low{% when 3 or 4 %}mid{% else %}high{% else %}other{% endcase %}`
	cases := []struct {
		name string
		x    any
		want string
	}{
		{name: "comma list", x: 2, want: "low"},
		{name: "or list", x: 4, want: "mid"},
		{name: "first else only", x: 9, want: "high"},
		{name: "strict comparison", x: "2", want: "high"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := renderString(t, e, src, map[string]any{"x": tc.x}, RenderOptions{})
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("no match and no else", func(t *testing.T) {
		got := renderString(t, e, `{% case x %}{% when 1 %}one{% endcase %}`, map[string]any{"x": 5}, RenderOptions{})
		if got != "" {
			t.Fatalf("expected empty output, got %q", got)
		}
	})

	blockSrc := `{% case block.type %}{% when 'text' %}hi{% endcase %}`
	data := map[string]any{"block": map[string]any{"type": "text"}}
	t.Run("editor wraps block subjects", func(t *testing.T) {
		got := renderString(t, e, blockSrc, data, RenderOptions{EditorMode: true})
		if diff := cmp.Diff(`<span class="swell-block">hi</span>`, got); diff != "" {
			t.Fatalf("output mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("no wrap outside editor", func(t *testing.T) {
		got := renderString(t, e, blockSrc, data, RenderOptions{})
		if got != "hi" {
			t.Fatalf("expected hi, got %q", got)
		}
	})
	t.Run("no wrap for other subjects", func(t *testing.T) {
		got := renderString(t, e, `{% case kind %}{% when 'a' %}A{% endcase %}`, map[string]any{"kind": "a"}, RenderOptions{EditorMode: true})
		if got != "A" {
			t.Fatalf("expected A, got %q", got)
		}
	})
}

type lazyFunc func(ctx context.Context) (any, error)

func (f lazyFunc) Resolve(ctx context.Context) (any, error) { return f(ctx) }

func TestLazyValuesResolveOnAccess(t *testing.T) {
	e := New()
	calls := 0
	product := lazyFunc(func(context.Context) (any, error) {
		calls++
		return map[string]any{"title": "Lamp"}, nil
	})

	got := renderString(t, e, `{% if false %}{{ product.title }}{% endif %}`, map[string]any{"product": product}, RenderOptions{})
	if got != "" || calls != 0 {
		t.Fatalf("expected no access, got %q after %d calls", got, calls)
	}

	got = renderString(t, e, `{{ product.title }}`, map[string]any{"product": product}, RenderOptions{})
	if got != "Lamp" || calls != 1 {
		t.Fatalf("expected Lamp after 1 call, got %q after %d calls", got, calls)
	}
}

func TestLazyErrorsFailTheRender(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	failing := lazyFunc(func(context.Context) (any, error) { return nil, boom })
	_, err := e.RenderString(context.Background(), `{{ p.title }}`, map[string]any{"p": failing}, RenderOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestGlobalsVisibleBehindScopes(t *testing.T) {
	e := New()
	opts := RenderOptions{Globals: map[string]any{"shop": map[string]any{"name": "Acme"}, "title": "global"}}
	got := renderString(t, e, `{{ shop.name }} {{ title }}`, map[string]any{"title": "local"}, opts)
	if got != "Acme local" {
		t.Fatalf("expected scope to shadow globals, got %q", got)
	}
}

func TestUnknownFilters(t *testing.T) {
	var warnings []string
	lax := New(WithWarningHandler(func(_ context.Context, file, msg string) {
		warnings = append(warnings, file+": "+msg)
	}))
	got := renderString(t, lax, `{{ "x" | nope }}`, nil, RenderOptions{File: "theme/sections/a.liquid"})
	if got != "x" {
		t.Fatalf("expected input passthrough, got %q", got)
	}
	if diff := cmp.Diff([]string{`theme/sections/a.liquid: unknown filter "nope"`}, warnings); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}

	strict := New(WithStrictFilters())
	if _, err := strict.RenderString(context.Background(), `{{ "x" | nope }}`, nil, RenderOptions{}); err == nil {
		t.Fatalf("expected strict engine to fail on unknown filter")
	}
}

func TestParseErrors(t *testing.T) {
	e := New()

	_, err := e.Parse("a\n{{ x | }}", "t")
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected LineError, got %v", err)
	}
	if lineErr.Line != 2 {
		t.Fatalf("expected line 2, got %d", lineErr.Line)
	}

	for _, src := range []string{
		`{% nope %}`,
		`{% if x %}open`,
		`{% for x items %}{% endfor %}`,
		`{{ "unterminated }}`,
		`{% raw %}never closed`,
	} {
		if _, err := e.Parse(src, "t"); err == nil {
			t.Errorf("expected parse error for %q", src)
		}
	}
}

func TestRegistriesArePerEngine(t *testing.T) {
	a := New()
	b := New()
	if err := a.RegisterFilter("shout", func(_ *State, in any, _ []any, _ map[string]any) (any, error) {
		return strings.ToUpper(ToString(in)) + "!", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := a.RegisterFilter("shout", func(*State, any, []any, map[string]any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate filter registration to fail")
	}
	if err := a.RegisterTag("if", parseIf(false)); err == nil {
		t.Fatalf("expected duplicate tag registration to fail")
	}

	if got := renderString(t, a, `{{ "hey" | shout }}`, nil, RenderOptions{}); got != "HEY!" {
		t.Fatalf("expected HEY!, got %q", got)
	}
	if got := renderString(t, b, `{{ "hey" | shout }}`, nil, RenderOptions{}); got != "hey" {
		t.Fatalf("expected filter to be absent on second engine, got %q", got)
	}
}

func TestCustomTagSeesIsolatedState(t *testing.T) {
	e := New()
	e.MustRegisterTag("isolate", func(p *Parser, tok *Token) (Node, error) {
		body, err := p.ParseBlock(tok)
		if err != nil {
			return nil, err
		}
		return NodeFunc(func(s *State, w *strings.Builder) error {
			child := s.Isolated(map[string]any{"inner": "in"}, "child")
			return RenderNodes(child, w, body)
		}), nil
	})
	opts := RenderOptions{Globals: map[string]any{"g": "G"}}
	got := renderString(t, e, `{% assign outer = "out" %}{% isolate %}[{{ outer }}{{ inner }}{{ g }}]{% endisolate %}`, nil, opts)
	if got != "[inG]" {
		t.Fatalf("expected isolated scope, got %q", got)
	}
}

func TestRenderHonorsCancellation(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RenderString(ctx, `a{{ b }}`, nil, RenderOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
