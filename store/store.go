// Package store persists obsels and session identity documents in
// SQLite and runs the aggregate statistics queries.
package store

import (
	"database/sql"

	"nots/idgen"
)

// Schema for the obsel trace and identity tables. Call Store.Init or
// apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS obsels (
	id       TEXT PRIMARY KEY,
	type     TEXT NOT NULL DEFAULT '',
	begin_ms INTEGER NOT NULL DEFAULT 0,
	end_ms   INTEGER NOT NULL DEFAULT 0,
	subject  TEXT NOT NULL DEFAULT '',
	session  TEXT NOT NULL DEFAULT '',
	extra    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_obsels_subject ON obsels(subject);
CREATE INDEX IF NOT EXISTS idx_obsels_begin ON obsels(begin_ms);
CREATE INDEX IF NOT EXISTS idx_obsels_end ON obsels(end_ms);

CREATE TABLE IF NOT EXISTS userinfo (
	id         TEXT PRIMARY KEY,
	profile    TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store wraps an open database for trace operations.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithObselIDGenerator sets a custom generator for store-assigned
// obsel IDs.
func WithObselIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		DB:    db,
		newID: idgen.Prefixed("obs_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the tables if they don't exist.
func (s *Store) Init() error {
	_, err := s.DB.Exec(Schema)
	return err
}
