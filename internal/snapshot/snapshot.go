// Package snapshot keeps the previous and current page text between runs.
package snapshot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/storage"
)

// File names inside the data directory.
const (
	PreviousFile = "previous.txt"
	CurrentFile  = "current.txt"
)

const contentType = "text/plain; charset=utf-8"

// TextStore is the local persistence the snapshots live in.
type TextStore interface {
	ReadText(path string) (string, error)
	WriteText(path, content string) error
}

// Store reads the baseline and records new snapshots.
type Store struct {
	local   TextStore
	mirrors []storage.BlobStore
	logger  *zap.Logger
}

// New builds a Store. Mirrors receive copies of both files after each Save.
func New(local TextStore, logger *zap.Logger, mirrors ...storage.BlobStore) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{local: local, mirrors: mirrors, logger: logger}
}

// Previous returns the stored baseline, "" before the first run.
func (s *Store) Previous() (string, error) {
	text, err := s.local.ReadText(PreviousFile)
	if err != nil {
		return "", fmt.Errorf("read previous snapshot: %w", err)
	}
	return text, nil
}

// Current returns the latest stored extraction.
func (s *Store) Current() (string, error) {
	text, err := s.local.ReadText(CurrentFile)
	if err != nil {
		return "", fmt.Errorf("read current snapshot: %w", err)
	}
	return text, nil
}

// Save overwrites both the previous and current files with text, so the next
// run compares against it. Local write errors are returned; mirror errors are
// logged.
func (s *Store) Save(ctx context.Context, text string) error {
	for _, name := range []string{PreviousFile, CurrentFile} {
		if err := s.local.WriteText(name, text); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	for _, mirror := range s.mirrors {
		for _, name := range []string{PreviousFile, CurrentFile} {
			uri, err := mirror.PutObject(ctx, name, contentType, strings.NewReader(text))
			if err != nil {
				s.logger.Warn("Snapshot mirror upload failed", zap.String("file", name), zap.Error(err))
				continue
			}
			s.logger.Debug("Snapshot mirrored", zap.String("uri", uri))
		}
	}
	return nil
}
