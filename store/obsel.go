package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"nots/obsel"
)

// Filter selects obsels by subject and/or time window. From and To are
// strict bounds: begin > From, end < To. Boundary timestamps are
// excluded.
type Filter struct {
	Subject string
	From    *int64
	To      *int64
}

// Windowed reports whether the filter restricts by time.
func (f Filter) Windowed() bool {
	return f.From != nil || f.To != nil
}

// SubjectScope returns the filter reduced to its subject, the scope
// used as the content-range total in time-window mode.
func (f Filter) SubjectScope() Filter {
	return Filter{Subject: f.Subject}
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.Subject != "" {
		clauses = append(clauses, "subject = ?")
		args = append(args, f.Subject)
	}
	if f.From != nil {
		clauses = append(clauses, "begin_ms > ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		clauses = append(clauses, "end_ms < ?")
		args = append(args, *f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const obselColumns = "id, type, begin_ms, end_ms, subject, session, extra"

// InsertObsels persists a batch. Every record is stamped with the
// caller's session (client-supplied values are discarded) and assigned
// a fresh ID when it has none. Returns the number inserted. Repeated
// submission creates duplicate records; there is no deduplication.
func (s *Store) InsertObsels(ctx context.Context, sessionID string, batch []*obsel.Obsel) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert obsels: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO obsels (`+obselColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("insert obsels: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range batch {
		if o.ID == "" {
			o.ID = s.newID()
		}
		o.Session = sessionID
		extra, err := json.Marshal(o.Extra)
		if err != nil {
			return 0, fmt.Errorf("insert obsels: marshal extra: %w", err)
		}
		if o.Extra == nil {
			extra = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx,
			o.ID, o.Type, o.Begin, o.End, o.Subject, o.Session, string(extra)); err != nil {
			return 0, fmt.Errorf("insert obsel %s: %w", o.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert obsels: commit: %w", err)
	}
	return len(batch), nil
}

// Query returns all records matching the filter, in insertion order.
func (s *Store) Query(ctx context.Context, f Filter) ([]*obsel.Obsel, error) {
	where, args := f.where()
	return s.queryObsels(ctx,
		`SELECT `+obselColumns+` FROM obsels`+where+` ORDER BY rowid`, args...)
}

// QueryPage returns one page of matching records, in insertion order.
func (s *Store) QueryPage(ctx context.Context, f Filter, limit, offset int) ([]*obsel.Obsel, error) {
	where, args := f.where()
	args = append(args, limit, offset)
	return s.queryObsels(ctx,
		`SELECT `+obselColumns+` FROM obsels`+where+` ORDER BY rowid LIMIT ? OFFSET ?`, args...)
}

// Count returns the number of matching records without materializing them.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM obsels`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count obsels: %w", err)
	}
	return n, nil
}

// GetByID returns the record with the given store-assigned identifier,
// or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*obsel.Obsel, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+obselColumns+` FROM obsels WHERE id = ?`, id)
	o, err := scanObsel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get obsel: %w", err)
	}
	return o, nil
}

func (s *Store) queryObsels(ctx context.Context, query string, args ...any) ([]*obsel.Obsel, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query obsels: %w", err)
	}
	defer rows.Close()

	var result []*obsel.Obsel
	for rows.Next() {
		o, err := scanObsel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obsel: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObsel(row scanner) (*obsel.Obsel, error) {
	var o obsel.Obsel
	var extra string
	err := row.Scan(&o.ID, &o.Type, &o.Begin, &o.End, &o.Subject, &o.Session, &extra)
	if err != nil {
		return nil, err
	}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &o.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return &o, nil
}
