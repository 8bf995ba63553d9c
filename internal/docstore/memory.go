package docstore

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps documents in process memory. It backs tests and the
// "memory" driver.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]Document
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]Document)}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.colls[collection][id]
	if !ok {
		return nil, false, nil
	}
	return cloneDocument(doc), true, nil
}

func (m *Memory) List(_ context.Context, collection string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.colls[collection]
	entries := make([]Entry, 0, len(coll))
	for id, doc := range coll {
		entries = append(entries, Entry{ID: id, Data: cloneDocument(doc)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (m *Memory) Mutate(_ context.Context, collection, id string, fn MutateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.colls[collection][id]
	next, keep, err := fn(cloneDocument(cur), exists)
	if err != nil {
		return err
	}
	if !keep {
		delete(m.colls[collection], id)
		return nil
	}
	if m.colls[collection] == nil {
		m.colls[collection] = make(map[string]Document)
	}
	m.colls[collection][id] = cloneDocument(next)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
