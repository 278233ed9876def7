package state

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a requested document cannot be located.
var ErrNotFound = errors.New("state: not found")

// Store owns the Postgres handle shared by every collection.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Collection returns a handle scoped to the named document collection.
func (s *Store) Collection(name string) *Collection {
	return &Collection{db: s.db, name: name}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("state: store not configured")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
