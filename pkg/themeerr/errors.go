// Package themeerr defines the error taxonomy shared by the theme engine.
//
// NotFound is distinct so an HTTP layer can answer 404. RenderError is caught
// at the smallest scope (one template or section) and degraded to an inline
// comment. ConfigParseError is propagated because a malformed JSON config
// cannot be partially rendered. CompatibilityError marks authoring bugs in
// foreign-dialect themes.
package themeerr

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("theme: not found")

// NotFoundError reports a missing template, page, or layout.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("theme: %q not found", e.Name)
	}
	return fmt.Sprintf("theme: %s %q not found", e.Kind, e.Name)
}

// Is lets errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// RenderError wraps a parse or evaluation failure of a single template.
type RenderError struct {
	Path string
	Line int
	Err  error
}

func (e *RenderError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("render %s:%d: %v", e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("render %s: %v", e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("render line %d: %v", e.Line, e.Err)
	default:
		return fmt.Sprintf("render: %v", e.Err)
	}
}

func (e *RenderError) Unwrap() error { return e.Err }

// ConfigParseError reports malformed JSON in a JSON-typed config.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("theme: parse config %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// CompatibilityError reports an unsupported construct in a foreign theme.
type CompatibilityError struct {
	Construct string
	Value     string
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("compat: unsupported %s %q", e.Construct, e.Value)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AsRenderError extracts a RenderError from err.
func AsRenderError(err error) (*RenderError, bool) {
	var target *RenderError
	ok := errors.As(err, &target)
	return target, ok
}

// AsConfigParseError extracts a ConfigParseError from err.
func AsConfigParseError(err error) (*ConfigParseError, bool) {
	var target *ConfigParseError
	ok := errors.As(err, &target)
	return target, ok
}

// AsCompatibilityError extracts a CompatibilityError from err.
func AsCompatibilityError(err error) (*CompatibilityError, bool) {
	var target *CompatibilityError
	ok := errors.As(err, &target)
	return target, ok
}

// IsFatal reports whether err must abort the page instead of degrading to a
// comment: config parse failures, compatibility errors, and cancellation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := AsConfigParseError(err); ok {
		return true
	}
	if _, ok := AsCompatibilityError(err); ok {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
