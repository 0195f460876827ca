// Package runlog appends one structured record per pagewatch invocation to an
// append-only JSON array file and forwards it to optional mirrors.
package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultPath is the log file name inside the data directory.
const DefaultPath = "logs.json"

// Store is the subset of the local store the run log needs.
type Store interface {
	AppendJSONArray(path string, entry any) error
	ReadJSONArray(path string) ([]json.RawMessage, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Mirror receives every appended entry, e.g. a database table.
type Mirror interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger owns the run-log file.
type Logger struct {
	store   Store
	path    string
	clock   Clock
	mirrors []Mirror
	logger  *zap.Logger
}

// New builds a Logger writing to path (DefaultPath when empty).
func New(store Store, path string, clock Clock, logger *zap.Logger, mirrors ...Mirror) *Logger {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		store:   store,
		path:    path,
		clock:   clock,
		mirrors: mirrors,
		logger:  logger,
	}
}

// AppendRun stamps entry with the current UTC time unless it already carries
// a timestamp, appends it to the file and then to each mirror. The stamped
// entry is returned. Mirror errors are logged and swallowed: the file is the
// system of record.
func (l *Logger) AppendRun(ctx context.Context, entry Entry) (Entry, error) {
	if entry.Timestamp == "" {
		entry.Timestamp = l.clock.Now().UTC().Format(TimestampLayout)
	}
	if err := l.store.AppendJSONArray(l.path, entry); err != nil {
		return entry, fmt.Errorf("append run log: %w", err)
	}
	for _, m := range l.mirrors {
		if err := m.Record(ctx, entry); err != nil {
			l.logger.Warn("Run log mirror failed",
				zap.String("status", string(entry.Status)),
				zap.String("run_id", entry.RunID),
				zap.Error(err),
			)
		}
	}
	return entry, nil
}

// Entries reads the whole log in append order.
func (l *Logger) Entries() ([]Entry, error) {
	raw, err := l.store.ReadJSONArray(l.path)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("decode run log entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Tail returns at most n of the most recent entries, oldest first. n <= 0
// returns everything.
func (l *Logger) Tail(n int) ([]Entry, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
