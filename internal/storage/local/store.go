// Package local persists snapshots and the run log as plain files under one
// data directory.
//
// Writes are full overwrites and are not atomic: a crash mid-write can leave a
// truncated file. Nothing here locks, so a single data directory must never be
// shared by two concurrent runs.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local store.
type Config struct {
	// BaseDir is the data directory; it is created on startup if missing.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store reads and writes files relative to BaseDir.
type Store struct {
	baseDir string
}

// New creates the data directory if needed and verifies it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory %q is not a directory", cfg.BaseDir)
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// BaseDir returns the data directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// resolve joins path onto the base directory and rejects traversal.
func (s *Store) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	cleanBase := filepath.Clean(s.baseDir)
	full := filepath.Clean(filepath.Join(cleanBase, path))
	if !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the data directory", path)
	}
	return full, nil
}

// ReadText returns the file contents, or "" when the file does not exist.
func (s *Store) ReadText(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	// #nosec G304 -- path is confined to the data directory by resolve.
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText overwrites path with content, creating parent directories.
func (s *Store) WriteText(path, content string) error {
	_, err := s.write(path, []byte(content))
	return err
}

// PutObject is the blob-store form of WriteText and returns a file:// URI.
func (s *Store) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	full, err := s.write(path, data)
	if err != nil {
		return "", err
	}
	return "file://" + full, nil
}

func (s *Store) write(path string, data []byte) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return full, nil
}

// ReadJSONArray decodes a JSON array file. A missing or empty file yields an
// empty slice.
func (s *Store) ReadJSONArray(path string) ([]json.RawMessage, error) {
	text, err := s.ReadText(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []json.RawMessage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

// AppendJSONArray reads the array at path, appends entry and rewrites the
// whole file pretty-printed. Existing items are copied through untouched.
func (s *Store) AppendJSONArray(path string, entry any) error {
	items, err := s.ReadJSONArray(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	items = append(items, raw)

	var buf bytes.Buffer
	encoded, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := json.Indent(&buf, encoded, "", "  "); err != nil {
		return fmt.Errorf("indent %s: %w", path, err)
	}
	return s.WriteText(path, buf.String())
}
