package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores documents as JSON rows keyed by (collection, id).
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, ErrNoPath
	}
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrUnavailable, err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (collection, id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc, err := unmarshalDocument(data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		doc, err := unmarshalDocument(data)
		if err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, err)
		}
		entries = append(entries, Entry{ID: id, Data: doc})
	}
	return entries, rows.Err()
}

func (s *SQLite) Mutate(ctx context.Context, collection, id string, fn MutateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		cur    Document
		exists bool
		data   string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	default:
		if cur, err = unmarshalDocument(data); err != nil {
			return err
		}
		exists = true
	}

	next, keep, err := fn(cur, exists)
	if err != nil {
		return err
	}
	if !keep {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
		); err != nil {
			return err
		}
		return tx.Commit()
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(encoded), time.Now(),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func unmarshalDocument(data string) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
