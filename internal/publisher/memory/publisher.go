// Package memory contains an in-memory change-event publisher for tests and
// dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/pagewatch/internal/publisher"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []publisher.ChangeEvent
	err    error
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes every later publish return err.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// PublishChange records the event and returns a pseudo ID.
func (p *Publisher) PublishChange(_ context.Context, event publisher.ChangeEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded publishes.
func (p *Publisher) Events() []publisher.ChangeEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.ChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}
