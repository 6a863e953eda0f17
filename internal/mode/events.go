package mode

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/kindred/internal/migrate"
)

// ModeChanged is broadcast after a transition hands off to a new store.
type ModeChanged struct {
	Mode     State
	Previous State
	At       time.Time
	// Replayed counts deferred writes applied after hand-off, failures included.
	Replayed int
	Failed   []TaskFailure
	// Report is the migration report, nil when no migration ran.
	Report *migrate.Report
}

// bus fans ModeChanged events out to subscribers.
//
// Delivery is non-blocking: a subscriber whose buffer is full misses the
// event, which is logged. Subscribers that need every event must drain their
// channel promptly.
type bus struct {
	mu     sync.Mutex
	subs   map[int]chan ModeChanged
	next   int
	buffer int
	closed bool
	logger *slog.Logger
}

func newBus(buffer int, logger *slog.Logger) *bus {
	if buffer < 1 {
		buffer = 1
	}
	return &bus{
		subs:   make(map[int]chan ModeChanged),
		buffer: buffer,
		logger: logger,
	}
}

func (b *bus) subscribe() (<-chan ModeChanged, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ModeChanged, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *bus) publish(ev ModeChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("mode event dropped, subscriber buffer full", "subscriber", id, "mode", ev.Mode)
		}
	}
}

func (b *bus) close() {
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
