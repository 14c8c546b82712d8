package docstore

import (
	"context"
	"sync"
)

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent announces a committed write. Subscribers re-read the store
// rather than consuming payloads off the event, so the event only carries
// the address of what changed.
type ChangeEvent struct {
	Path  string     `json:"path"`
	DocID string     `json:"doc_id"`
	Kind  ChangeKind `json:"kind"`
}

// Notifier carries change events from committed writes back into every
// store instance's subscription dispatch. The redis-backed implementation
// fans events across processes; the in-process one covers single-instance
// deployments without redis.
type Notifier interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Start(ctx context.Context, onEvent func(ev ChangeEvent)) error
	Close() error
}

type inprocNotifier struct {
	mu      sync.RWMutex
	onEvent func(ev ChangeEvent)
}

func NewInProcessNotifier() Notifier {
	return &inprocNotifier{}
}

func (n *inprocNotifier) Publish(ctx context.Context, ev ChangeEvent) error {
	n.mu.RLock()
	fn := n.onEvent
	n.mu.RUnlock()
	if fn == nil {
		return nil
	}
	// Async like the redis path, so a write never blocks on its own
	// subscribers re-reading the store.
	go fn(ev)
	return nil
}

func (n *inprocNotifier) Start(ctx context.Context, onEvent func(ev ChangeEvent)) error {
	n.mu.Lock()
	n.onEvent = onEvent
	n.mu.Unlock()
	return nil
}

func (n *inprocNotifier) Close() error {
	n.mu.Lock()
	n.onEvent = nil
	n.mu.Unlock()
	return nil
}
