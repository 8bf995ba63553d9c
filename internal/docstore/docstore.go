// Package docstore is a small document store with per-path collections,
// point reads and writes, field updates and live collection snapshots.
//
// A document path is a slash-separated collection path followed by the
// document id, e.g. "artifacts/default/public/data/teacherIndex/ABCDEF12".
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNotFound is returned by Update when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable wraps backend failures to reach the underlying storage.
	ErrUnavailable = errors.New("store unavailable")
	// ErrNoPath is returned when a persistent backend is opened without a path.
	ErrNoPath = errors.New("store path not configured")
	// ErrBadPath is returned for paths without a collection and an id.
	ErrBadPath = errors.New("invalid document path")
)

// Document is a JSON object.
type Document map[string]any

type deleteSentinel struct{}

// DeleteField removes a field when used as a value in Update or a merging Set.
var DeleteField any = deleteSentinel{}

// Entry is one document of a collection.
type Entry struct {
	ID   string   `json:"id"`
	Data Document `json:"data"`
}

// Snapshot is the full content of a collection at one point in time.
type Snapshot struct {
	Collection string  `json:"collection"`
	Entries    []Entry `json:"entries"`
}

// MutateFunc receives the current document and returns its replacement.
// Returning keep=false deletes the document.
type MutateFunc func(cur Document, exists bool) (next Document, keep bool, err error)

// Backend persists documents. Mutate must apply fn atomically per document.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	List(ctx context.Context, collection string) ([]Entry, error)
	Mutate(ctx context.Context, collection, id string, fn MutateFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// Store adds merge semantics and live subscriptions on top of a Backend.
type Store struct {
	backend Backend
	broker  *broker
}

// New wraps a backend.
func New(b Backend) *Store {
	return &Store{backend: b, broker: newBroker()}
}

// Open creates a store for the named driver: memory, sqlite or bolt.
func Open(driver, path string) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch strings.ToLower(driver) {
	case "memory", "":
		b = NewMemory()
	case "sqlite":
		b, err = NewSQLite(path)
	case "bolt", "bbolt":
		b, err = NewBolt(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("document store ready", "driver", driver, "path", path)
	return New(b), nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get reads one document. A missing document returns ok=false and no error.
func (s *Store) Get(ctx context.Context, path string) (Document, bool, error) {
	coll, id, err := Split(path)
	if err != nil {
		return nil, false, err
	}
	return s.backend.Get(ctx, coll, id)
}

// Set writes a document. With merge, nested objects are merged field by
// field and DeleteField removes fields; without merge the document is replaced.
func (s *Store) Set(ctx context.Context, path string, doc Document, merge bool) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	incoming, err := canonical(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	err = s.backend.Mutate(ctx, coll, id, func(cur Document, exists bool) (Document, bool, error) {
		if !merge || !exists {
			next := Document{}
			mergeInto(next, incoming)
			return next, true, nil
		}
		mergeInto(cur, incoming)
		return cur, true, nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.publish(ctx, coll)
	return nil
}

// Update applies a partial field map to an existing document. Keys may be
// dotted field paths such as "scores.s1"; DeleteField removes the field.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	prepared := make(map[string]any, len(fields))
	for k, v := range fields {
		cv, err := canonicalValue(v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", path, k, err)
		}
		prepared[k] = cv
	}
	err = s.backend.Mutate(ctx, coll, id, func(cur Document, exists bool) (Document, bool, error) {
		if !exists {
			return nil, false, ErrNotFound
		}
		for k, v := range prepared {
			setField(cur, strings.Split(k, "."), v)
		}
		return cur, true, nil
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	s.publish(ctx, coll)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	err = s.backend.Mutate(ctx, coll, id, func(Document, bool) (Document, bool, error) {
		return nil, false, nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.publish(ctx, coll)
	return nil
}

// List returns every document of a collection ordered by id.
func (s *Store) List(ctx context.Context, collection string) ([]Entry, error) {
	return s.backend.List(ctx, strings.Trim(collection, "/"))
}

// Subscribe streams full snapshots of a collection: first the current
// content, then a new snapshot after every write. Only the most recent
// undelivered snapshot is kept. The channel closes when ctx is done.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, error) {
	collection = strings.Trim(collection, "/")
	sub, err := s.broker.add(collection, func() (Snapshot, error) {
		entries, err := s.backend.List(ctx, collection)
		return Snapshot{Collection: collection, Entries: entries}, err
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		s.broker.remove(collection, sub)
	}()
	return sub.ch, nil
}

func (s *Store) publish(ctx context.Context, collection string) {
	s.broker.publish(collection, func() (Snapshot, error) {
		entries, err := s.backend.List(context.WithoutCancel(ctx), collection)
		return Snapshot{Collection: collection, Entries: entries}, err
	})
}

// Decode converts a document into v via its JSON form.
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Encode converts v into a document via its JSON form.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Join builds a slash-separated path.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// Split separates a document path into its collection and id.
func Split(path string) (collection, id string, err error) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	return path[:i], path[i+1:], nil
}
