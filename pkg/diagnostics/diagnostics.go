// Package diagnostics carries structured events for errors the engine
// swallows on purpose (degraded renders, unsupported settings types, missing
// translations). Library packages never log; they record.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies an Event.
type Kind string

const (
	KindRenderError           Kind = "render_error"
	KindSectionError          Kind = "section_error"
	KindConfigParseError      Kind = "config_parse_error"
	KindUnsupportedSetting    Kind = "unsupported_setting_type"
	KindMissingTranslation    Kind = "missing_translation"
	KindResourceError         Kind = "resource_error"
	KindSectionDisabled       Kind = "section_disabled"
	KindCompatibilityFallback Kind = "compatibility_fallback"
)

// Event is one recorded diagnostic.
type Event struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
	Attrs   map[string]string
	Time    time.Time
}

// Recorder receives diagnostic events. Implementations must be safe for
// concurrent use because sibling sections render in parallel.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, event Event)

func (f RecorderFunc) Record(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Memory keeps events in memory, in arrival order.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory recorder.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Kinds returns the kinds of the recorded events, in order.
func (m *Memory) Kinds() []Kind {
	events := m.Events()
	out := make([]Kind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

// Zerolog writes events through a zerolog logger at warn level.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog wraps logger as a Recorder.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

func (z *Zerolog) Record(_ context.Context, event Event) {
	ev := z.logger.Warn().Str("kind", string(event.Kind))
	if event.Path != "" {
		ev = ev.Str("path", event.Path)
	}
	for k, v := range event.Attrs {
		ev = ev.Str(k, v)
	}
	if event.Err != nil {
		ev = ev.Err(event.Err)
	}
	ev.Msg(event.Message)
}

// Multi fans an event out to several recorders.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, event Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, event)
		}
	}
}
