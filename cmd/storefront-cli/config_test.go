package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("STOREFRONT_STORE_NAME", "Env Shop")
	cfg, err := LoadConfig(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := &Config{
		Theme:   ThemeConfig{Dir: "./testdata"},
		Store:   StoreConfig{Name: "Env Shop", Currency: "usd"},
		Request: RequestConfig{Path: "/about"},
		Log:     LogConfig{Level: "error"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"name": "Env Shop", "currency": "USD"}, cfg.StoreSettings()); diff != "" {
		t.Fatalf("store settings mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigReadsDotEnvBesideConfig(t *testing.T) {
	// registered for cleanup, then cleared so the .env value applies
	t.Setenv("STOREFRONT_REQUEST_HOST", "")
	os.Unsetenv("STOREFRONT_REQUEST_HOST")

	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	if err := os.WriteFile(path, []byte("theme:\n  dir: /srv/theme\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STOREFRONT_REQUEST_HOST=shop.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Request.Host != "shop.example" {
		t.Fatalf("expected host from .env, got %q", cfg.Request.Host)
	}
	if cfg.Request.Path != "/" || cfg.Log.Level != "warn" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("theme: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		msgs []string
	}{
		{
			name: "directory theme",
			cfg:  Config{Theme: ThemeConfig{Dir: "theme"}, Request: RequestConfig{Path: "/"}},
		},
		{
			name: "sqlite theme",
			cfg:  Config{Theme: ThemeConfig{SQLite: ":memory:"}, Request: RequestConfig{Path: "/"}},
		},
		{
			name: "everything wrong",
			cfg:  Config{Store: StoreConfig{Currency: "dollars"}, Request: RequestConfig{Path: "about"}},
			msgs: []string{"theme.dir or theme.sqlite is required", "not an ISO 4217 code", "must start with /"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if len(tc.msgs) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected errors %v", tc.msgs)
			}
			for _, msg := range tc.msgs {
				if !strings.Contains(err.Error(), msg) {
					t.Fatalf("error %q does not mention %q", err, msg)
				}
			}
		})
	}
}
