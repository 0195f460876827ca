package runlog

import (
	"fmt"
	"time"
)

// Status is the outcome of one run.
type Status string

// Run outcomes.
const (
	StatusOK          Status = "ok"
	StatusScrapeError Status = "scrape_error"
	StatusEmailError  Status = "email_error"
)

// EmailStatus records what happened to the report email on a successful run.
type EmailStatus string

// Email outcomes.
const (
	EmailSent     EmailStatus = "sent"
	EmailNoChange EmailStatus = "no_change"
)

// TimestampLayout is ISO-8601 UTC with microseconds and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one immutable run-log record. Changed, EmailStatus, Length and
// ContentSHA256 are only present on ok entries; Error only on failures.
type Entry struct {
	Timestamp     string      `json:"timestamp"`
	RunID         string      `json:"run_id,omitempty"`
	URL           string      `json:"url"`
	Status        Status      `json:"status"`
	Error         string      `json:"error,omitempty"`
	Changed       *bool       `json:"changed,omitempty"`
	EmailStatus   EmailStatus `json:"email_status,omitempty"`
	Length        *int        `json:"length,omitempty"`
	ContentSHA256 string      `json:"content_sha256,omitempty"`
}

// Failure builds a scrape_error or email_error entry.
func Failure(url string, status Status, err error) Entry {
	entry := Entry{URL: url, Status: status}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}

// Success builds an ok entry.
func Success(url string, changed bool, email EmailStatus, length int, digest string) Entry {
	return Entry{
		URL:           url,
		Status:        StatusOK,
		Changed:       &changed,
		EmailStatus:   email,
		Length:        &length,
		ContentSHA256: digest,
	}
}

// Time parses Timestamp. Entries written by older tooling without the
// microsecond field are accepted too.
func (e Entry) Time() (time.Time, error) {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse run timestamp %q", e.Timestamp)
}

// IsChanged dereferences Changed, treating absent as false.
func (e Entry) IsChanged() bool {
	return e.Changed != nil && *e.Changed
}
