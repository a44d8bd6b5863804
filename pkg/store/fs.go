package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// FS serves configs from a filesystem whose root contains the theme/ tree.
type FS struct {
	fsys fs.FS
}

// NewFS wraps fsys.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

func (s *FS) GetConfig(ctx context.Context, p string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = strings.TrimPrefix(path.Clean(p), "/")
	data, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", p, err)
	}
	typ, name := Describe(p)
	return &Config{ID: p, Type: typ, Name: name, FilePath: p, FileData: string(data)}, nil
}

func (s *FS) ListConfigs(ctx context.Context, prefix string) ([]*Config, error) {
	var out []*Config
	err := fs.WalkDir(s.fsys, Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasPrefix(p, prefix) {
			return nil
		}
		cfg, err := s.GetConfig(ctx, p)
		if err != nil {
			return err
		}
		if cfg != nil {
			out = append(out, cfg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}
