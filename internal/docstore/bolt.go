package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// Bolt stores documents in a single bbolt bucket keyed by
// collection + "\x00" + id, so a collection is a key prefix.
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (or creates) a bbolt file at path.
func NewBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s is locked by another process", ErrUnavailable, path)
		}
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func boltKey(collection, id string) []byte {
	return []byte(collection + "\x00" + id)
}

func (b *Bolt) Get(_ context.Context, collection, id string) (Document, bool, error) {
	var (
		doc Document
		ok  bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(documentsBucket).Get(boltKey(collection, id))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &doc)
	})
	if err != nil {
		return nil, false, err
	}
	return doc, ok, nil
}

func (b *Bolt) List(_ context.Context, collection string) ([]Entry, error) {
	entries := []Entry{}
	prefix := []byte(collection + "\x00")
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(documentsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("document %s: %w", k, err)
			}
			entries = append(entries, Entry{ID: string(k[len(prefix):]), Data: doc})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Bolt) Mutate(_ context.Context, collection, id string, fn MutateFunc) error {
	key := boltKey(collection, id)
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(documentsBucket)
		var cur Document
		raw := bucket.Get(key)
		if raw != nil {
			if err := json.Unmarshal(raw, &cur); err != nil {
				return err
			}
		}
		next, keep, err := fn(cur, raw != nil)
		if err != nil {
			return err
		}
		if !keep {
			return bucket.Delete(key)
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

func (b *Bolt) Ping(context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(documentsBucket) == nil {
			return errors.New("documents bucket missing")
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
