// Package publisher defines the events pagewatch emits when a page changes.
package publisher

import "context"

// EventPageChanged is the type of every ChangeEvent.
const EventPageChanged = "page.changed"

// ChangeEvent announces that a run detected new content.
type ChangeEvent struct {
	Type          string `json:"type"`
	RunID         string `json:"run_id"`
	URL           string `json:"url"`
	DetectedAt    string `json:"detected_at"`
	Length        int    `json:"length"`
	ContentSHA256 string `json:"content_sha256"`
	EmailStatus   string `json:"email_status"`
}

// Publisher delivers change events and returns the broker message ID.
type Publisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) (string, error)
}
