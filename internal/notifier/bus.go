package notifier

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mutation operation
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is a row-level order mutation. Consumers must be idempotent on
// OrderID + UpdatedAt.
type Event struct {
	Op        Op
	OrderID   uuid.UUID
	Number    string
	Status    string
	UpdatedAt time.Time
}

// Bus fans order mutations out to subscribers. Publish never blocks:
// a subscriber that cannot keep up loses events, which is logged.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buf    int
	logger *zap.Logger
	closed bool
}

// NewBus creates a bus with the given per-subscriber buffer size
func NewBus(buf int, logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]chan Event),
		buf:    buf,
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its id and channel
func (b *Bus) Subscribe() (uint64, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, b.buf)
	b.subs[b.nextID] = ch

	return b.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to all subscribers without blocking
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("notifier: dropping event for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.String("order", ev.Number))
		}
	}
}

// Close closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
