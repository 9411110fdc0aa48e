// Package store is the data access layer for run history. SQL stays here,
// away from the batch workflow.
package store

import (
	"database/sql"
	"errors"
)

// ErrRunNotFound is returned when no stored run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.db.Ping()
}
