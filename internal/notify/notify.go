// Package notify delivers committed change messages to subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/conduit-lang/sensorthings/internal/model"
)

// Sink receives change messages after the transaction that produced them
// has committed.
type Sink interface {
	Publish(ctx context.Context, msg *model.ChangeMessage) error
}

// Discard drops every message
type Discard struct{}

// Publish implements Sink
func (Discard) Publish(context.Context, *model.ChangeMessage) error {
	return nil
}

// Collector keeps published messages in memory.
type Collector struct {
	mu       sync.Mutex
	messages []*model.ChangeMessage
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Publish implements Sink
func (c *Collector) Publish(_ context.Context, msg *model.ChangeMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns the messages published so far, oldest first
func (c *Collector) Messages() []*model.ChangeMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.ChangeMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Reset forgets all messages
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
