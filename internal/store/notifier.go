package store

import "sync"

// Notifier fans per-record change events out to in-process
// subscribers. Delivery is synchronous in publish order per publisher;
// there is no ordering guarantee across distinct record ids hitting
// different publishers.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string][]func(Event)
	all  []func(Event)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string][]func(Event))}
}

// Subscribe registers a callback for one collection.
func (n *Notifier) Subscribe(collection string, fn func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[collection] = append(n.subs[collection], fn)
}

// SubscribeAll registers a callback for every collection.
func (n *Notifier) SubscribeAll(fn func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, fn)
}

func (n *Notifier) Publish(evt Event) {
	n.mu.RLock()
	subs := append(([]func(Event))(nil), n.subs[evt.Collection]...)
	subs = append(subs, n.all...)
	n.mu.RUnlock()

	for _, fn := range subs {
		fn(evt)
	}
}
