package broadcast

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invalidation announces that a product's summary changed at At. Origin is
// the instance that made the change.
type Invalidation struct {
	ProductID string    `json:"productId"`
	At        time.Time `json:"at"`
	Origin    string    `json:"origin"`
}

var invalidationsDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "review_invalidations_dropped_total",
		Help: "Invalidations not delivered to a local subscriber because its buffer was full",
	},
)

func init() {
	prometheus.MustRegister(invalidationsDropped)
}

// DefaultBuffer is the per-subscriber buffer used by the service.
const DefaultBuffer = 64

// Bus is an in-process publish/subscribe channel for invalidations.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Invalidation
	nextID uint64
	buffer int
}

// NewBus creates a bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[uint64]chan Invalidation),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; calling it more than once is safe.
func (b *Bus) Subscribe() (<-chan Invalidation, func()) {
	ch := make(chan Invalidation, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers inv to every subscriber with room and returns how many
// received it.
func (b *Bus) Publish(inv Invalidation) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- inv:
			delivered++
		default:
			invalidationsDropped.Inc()
		}
	}
	return delivered
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
