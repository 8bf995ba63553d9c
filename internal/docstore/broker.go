package docstore

import (
	"log/slog"
	"sync"
)

type subscriber struct {
	ch chan Snapshot
}

// broker fans collection snapshots out to subscribers. Loading and delivery
// happen under one lock so a subscriber never sees an older snapshot after a
// newer one.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *broker) add(collection string, load func() (Snapshot, error)) (*subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := load()
	if err != nil {
		return nil, err
	}
	sub := &subscriber{ch: make(chan Snapshot, 1)}
	sub.ch <- snap
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[*subscriber]struct{})
	}
	b.subs[collection][sub] = struct{}{}
	slog.Debug("subscriber added", "collection", collection, "count", len(b.subs[collection]))
	return sub, nil
}

func (b *broker) remove(collection string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[collection]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subs, collection)
	}
	close(sub.ch)
	slog.Debug("subscriber removed", "collection", collection)
}

func (b *broker) publish(collection string, load func() (Snapshot, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[collection]
	if len(subs) == 0 {
		return
	}
	snap, err := load()
	if err != nil {
		slog.Warn("snapshot load failed", "collection", collection, "error", err)
		return
	}
	for sub := range subs {
		deliver(sub.ch, snap)
	}
}

// deliver replaces any undelivered snapshot with snap.
func deliver(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
