// Package events fans lifecycle events out to in-process subscribers.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/LagoAI/LiebExplorer/pkg/logging"
)

const defaultSubscriberBufferSize = 64

// BusOptions configures a Bus.
type BusOptions struct {
	Name                 string
	SubscriberBufferSize int

	// HistorySize keeps the most recent events for replay to late subscribers.
	HistorySize int

	Logger logging.Interface
}

// Bus is a fan-out publisher. Publish never blocks: an event is dropped for
// a subscriber whose buffer is full.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextSubID   uint64
	closed      bool
	closeOnce   sync.Once
	options     BusOptions
	logger      logging.Interface

	published atomic.Int64
	dropped   atomic.Int64

	history      []T
	historyNext  int
	historyCount int
}

type subscription[T any] struct {
	ch     chan T
	filter func(T) bool
}

// Typed is implemented by events that carry a type name.
type Typed interface {
	EventType() string
}

// NewBus creates a bus that closes itself when ctx is done.
func NewBus[T any](ctx context.Context, opts BusOptions) *Bus[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.SubscriberBufferSize <= 0 {
		opts.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	b := &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     opts,
		logger:      logger,
	}
	if opts.HistorySize > 0 {
		b.history = make([]T, opts.HistorySize)
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			b.Close()
		}()
	}
	return b
}

// Subscribe returns a channel receiving every event and a cancel function.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	return b.SubscribeFiltered(nil)
}

// SubscribeTypes returns a channel receiving events whose type is listed.
func (b *Bus[T]) SubscribeTypes(types ...string) (<-chan T, func()) {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		return b.SubscribeFiltered(nil)
	}
	return b.SubscribeFiltered(func(event T) bool {
		typed, ok := any(event).(Typed)
		if !ok {
			return false
		}
		_, matched := set[typed.EventType()]
		return matched
	})
}

// SubscribeFiltered returns a channel receiving events accepted by filter.
// A nil filter accepts everything.
func (b *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	ch := make(chan T, b.options.SubscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[id] = subscription[T]{ch: ch, filter: filter}
	b.mu.Unlock()

	return ch, func() { b.remove(id) }
}

// Publish delivers event to every matching subscriber.
func (b *Bus[T]) Publish(event T) {
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.appendHistoryLocked(event)
	b.published.Add(1)
	for _, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
				b.logger.Warnf("Event bus %s dropped %d events", b.name(), n)
			}
		}
	}
	b.mu.Unlock()
}

// History returns up to count most recent events, oldest first. A
// non-positive count returns the whole history.
func (b *Bus[T]) History(count int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.historyCount == 0 {
		return nil
	}
	total := b.historyCount
	if count <= 0 || count > total {
		count = total
	}
	size := len(b.history)
	start := (b.historyNext - count + size) % size

	out := make([]T, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, b.history[(start+i)%size])
	}
	return out
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus[T]) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		subs := b.subscribers
		b.subscribers = make(map[uint64]subscription[T])
		b.mu.Unlock()

		for _, sub := range subs {
			close(sub.ch)
		}
	})
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Stats returns the number of published and dropped deliveries.
func (b *Bus[T]) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

func (b *Bus[T]) appendHistoryLocked(event T) {
	if len(b.history) == 0 {
		return
	}
	b.history[b.historyNext] = event
	if b.historyCount < len(b.history) {
		b.historyCount++
	}
	b.historyNext = (b.historyNext + 1) % len(b.history)
}

func (b *Bus[T]) name() string {
	if b.options.Name == "" {
		return "events"
	}
	return b.options.Name
}
