// Package compat lets themes written for the Shopify Liquid dialect run on the
// native theme model. An Adapter is activated per request; every consumer
// treats a nil *Adapter as compatibility mode being off.
//
// The package owns the static translation tables: setting types, page names,
// template directories, font handles, form descriptors, and object adapters.
// They are read-only process-wide values.
package compat

import (
	"context"
	"strings"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
)

// SettingFlag is the store setting that switches a request into
// compatibility mode.
const SettingFlag = "shopify_compatibility"

// DefaultLocale names the designated default locale file
// (theme/locales/<DefaultLocale>.default.json).
const DefaultLocale = "en"

// Adapter carries the per-request compatibility state.
type Adapter struct {
	recorder      diagnostics.Recorder
	defaultLocale string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRecorder routes unsupported-type and fallback events to r.
func WithRecorder(r diagnostics.Recorder) Option {
	return func(a *Adapter) { a.recorder = r }
}

// WithDefaultLocale overrides the default locale file name.
func WithDefaultLocale(code string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(code) != "" {
			a.defaultLocale = strings.TrimSpace(code)
		}
	}
}

// New activates compatibility mode.
func New(opts ...Option) *Adapter {
	a := &Adapter{defaultLocale: DefaultLocale}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.recorder = diagnostics.OrNop(a.recorder)
	return a
}

// Enabled reports whether store settings request compatibility mode.
func Enabled(storeSettings map[string]any) bool {
	switch v := storeSettings[SettingFlag].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "shopify"
	}
	return false
}

// FromSettings returns an active adapter when the settings flag is set, or
// nil.
func FromSettings(storeSettings map[string]any, opts ...Option) *Adapter {
	if !Enabled(storeSettings) {
		return nil
	}
	return New(opts...)
}

// DefaultLocaleCode returns the default locale file name.
func (a *Adapter) DefaultLocaleCode() string { return a.defaultLocale }

func (a *Adapter) record(ctx context.Context, event diagnostics.Event) {
	a.recorder.Record(ctx, event)
}
