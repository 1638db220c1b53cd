package bookwatch

import (
	"sync"
	"sync/atomic"

	"bookflow/models"
)

// Watch is a single-writer, many-reader snapshot slot holding the latest
// published OrderBook. Publish overwrites the previous value and never
// blocks; Borrow is lock-free and always observes a complete book. Books
// are immutable once published: the owning feed builds a fresh value for
// every wire event.
type Watch struct {
	cur atomic.Pointer[models.OrderBook]

	mu     sync.Mutex
	notify chan struct{}
}

// New creates a watch seeded with an empty, disconnected book.
func New(venue models.Venue, symbol string) *Watch {
	w := &Watch{notify: make(chan struct{})}
	w.cur.Store(models.NewOrderBook(venue, symbol))
	return w
}

// Publish stores book as the latest snapshot and wakes any reader waiting
// on Changed. The caller must not mutate book afterwards.
func (w *Watch) Publish(book *models.OrderBook) {
	if book == nil {
		return
	}
	w.cur.Store(book)

	w.mu.Lock()
	close(w.notify)
	w.notify = make(chan struct{})
	w.mu.Unlock()
}

// Borrow returns the most recently published book. The returned value is
// shared between readers and must be treated as read-only; callers must
// not retain it across ticks.
func (w *Watch) Borrow() *models.OrderBook {
	return w.cur.Load()
}

// Changed returns a channel closed on the next Publish. Take a fresh
// channel after each wakeup.
func (w *Watch) Changed() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notify
}

// Pair bundles the two venue watches consumed by the render loop.
type Pair struct {
	HL  *Watch
	PDX *Watch
}

// NewPair creates the watches for both venues.
func NewPair(hlSymbol, pdxSymbol string) *Pair {
	return &Pair{
		HL:  New(models.VenueHyperliquid, hlSymbol),
		PDX: New(models.VenueParadex, pdxSymbol),
	}
}
