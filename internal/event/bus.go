package event

import "sync"

// Subscriber receives every Event published after it subscribes. Delivery
// is synchronous and best-effort: a slow subscriber callback delays the
// publisher, so subscribers that do real work should hop to their own
// goroutine.
type Subscriber func(Event)

// Bus fans out Events from one producer per correlation id to many
// subscribers. Publish copies the subscriber list under the lock and
// delivers outside it, synchronously on the publishing goroutine, so events
// from one producer reach each subscriber in emission order.
type Bus struct {
	mu          sync.Mutex
	subscribers []Subscriber
	metrics     *Metrics
}

// New builds an empty Bus. metrics may be nil to skip Prometheus/JSON
// counting.
func New(metrics *Metrics) *Bus {
	return &Bus{metrics: metrics}
}

// Subscribe registers sub to receive all future Events.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish delivers evt to every current subscriber, in subscription order,
// and records it in Metrics if configured.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	subs := append([]Subscriber(nil), b.subscribers...)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordEvent(evt.Category, evt.Variant)
	}
	for _, sub := range subs {
		sub(evt)
	}
}
