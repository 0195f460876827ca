package monitor

import (
	"context"
	"time"

	"github.com/JakeFAU/pagewatch/internal/metrics"
	"github.com/JakeFAU/pagewatch/internal/notify"
	"github.com/JakeFAU/pagewatch/internal/runlog"
)

// TextGetter fetches a page and returns its visible text.
type TextGetter interface {
	GetText(ctx context.Context, url, selector string) (string, error)
}

// Mailer delivers the HTML report.
type Mailer interface {
	Send(ctx context.Context, msg notify.Message) error
}

// SnapshotStore holds the baseline text between runs.
type SnapshotStore interface {
	Previous() (string, error)
	Save(ctx context.Context, text string) error
}

// RunLog appends one record per outcome.
type RunLog interface {
	AppendRun(ctx context.Context, entry runlog.Entry) (runlog.Entry, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher digests the normalized page text.
type Hasher interface {
	HashString(text string) string
}

// MetricsRecorder receives run outcomes.
type MetricsRecorder interface {
	ObserveRun(run metrics.Run)
	WriteTextfile(path string) error
}
