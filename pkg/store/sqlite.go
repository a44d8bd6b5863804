package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS theme_configs (
	id        TEXT NOT NULL,
	type      TEXT NOT NULL,
	name      TEXT NOT NULL,
	file_path TEXT NOT NULL PRIMARY KEY,
	file_data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS theme_configs_type_name ON theme_configs (type, name);
`

// SQLite persists theme configs in a single table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at dsn and ensures the
// config table exists. Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("store: sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// an in-memory database only lives as long as its connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put upserts a config by file path.
func (s *SQLite) Put(ctx context.Context, cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.FilePath) == "" {
		return fmt.Errorf("store: config file path is required")
	}
	typ, name := Describe(cfg.FilePath)
	if cfg.Type != "" {
		typ = cfg.Type
	}
	if cfg.Name != "" {
		name = cfg.Name
	}
	id := cfg.ID
	if id == "" {
		id = cfg.FilePath
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO theme_configs (id, type, name, file_path, file_data)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(file_path) DO UPDATE SET
	id = excluded.id,
	type = excluded.type,
	name = excluded.name,
	file_data = excluded.file_data`,
		id, typ, name, cfg.FilePath, cfg.FileData)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", cfg.FilePath, err)
	}
	return nil
}

func (s *SQLite) GetConfig(ctx context.Context, path string) (*Config, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, name, file_path, file_data FROM theme_configs WHERE file_path = ?`, path)
	var cfg Config
	if err := row.Scan(&cfg.ID, &cfg.Type, &cfg.Name, &cfg.FilePath, &cfg.FileData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get %s: %w", path, err)
	}
	return &cfg, nil
}

func (s *SQLite) ListConfigs(ctx context.Context, prefix string) ([]*Config, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, name, file_path, file_data FROM theme_configs WHERE substr(file_path, 1, ?) = ? ORDER BY file_path`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []*Config
	for rows.Next() {
		var cfg Config
		if err := rows.Scan(&cfg.ID, &cfg.Type, &cfg.Name, &cfg.FilePath, &cfg.FileData); err != nil {
			return nil, fmt.Errorf("store: scan config: %w", err)
		}
		out = append(out, &cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	return out, nil
}
