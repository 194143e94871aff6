package store

import (
	"context"
	"fmt"
	"time"
)

// SubjectStats summarises one subject's trace.
type SubjectStats struct {
	ID           string `json:"id"`
	ObselCount   int    `json:"obselCount"`
	MinTimestamp int64  `json:"minTimestamp"`
	MaxTimestamp int64  `json:"maxTimestamp"`
}

// Stats summarises the whole store.
type Stats struct {
	ObselCount   int            `json:"obselCount"`
	SubjectCount int            `json:"subjectCount"`
	MinTimestamp int64          `json:"minTimestamp"`
	MaxTimestamp int64          `json:"maxTimestamp"`
	Subjects     []SubjectStats `json:"subjects"`
}

// DayBucket is one calendar day's obsel count for a subject.
type DayBucket struct {
	Date       string `json:"date"`
	ObselCount int    `json:"obselCount"`
}

// Stats aggregates obsel counts and time ranges per subject. Records
// with begin == 0 carry no usable timestamp and are excluded from the
// per-subject aggregation, though they still count toward the store
// total.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Subjects: []SubjectStats{}}

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM obsels`).Scan(&stats.ObselCount); err != nil {
		return nil, fmt.Errorf("stats: total: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT subject, COUNT(*), MIN(begin_ms), MAX(end_ms)
		FROM obsels WHERE begin_ms != 0
		GROUP BY subject`)
	if err != nil {
		return nil, fmt.Errorf("stats: aggregate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sub SubjectStats
		if err := rows.Scan(&sub.ID, &sub.ObselCount, &sub.MinTimestamp, &sub.MaxTimestamp); err != nil {
			return nil, fmt.Errorf("stats: scan: %w", err)
		}
		stats.Subjects = append(stats.Subjects, sub)
		if stats.SubjectCount == 0 || sub.MinTimestamp < stats.MinTimestamp {
			stats.MinTimestamp = sub.MinTimestamp
		}
		if sub.MaxTimestamp > stats.MaxTimestamp {
			stats.MaxTimestamp = sub.MaxTimestamp
		}
		stats.SubjectCount++
	}
	return stats, rows.Err()
}

// DayBuckets walks the calendar days between the subject's first and
// last timestamps and counts matching records per day. Days with no
// records are omitted.
func (s *Store) DayBuckets(ctx context.Context, subject string) ([]DayBucket, error) {
	var count int
	var minMs, maxMs int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MIN(begin_ms), 0), COALESCE(MAX(end_ms), 0)
		FROM obsels WHERE begin_ms != 0 AND subject = ?`, subject).
		Scan(&count, &minMs, &maxMs)
	if err != nil {
		return nil, fmt.Errorf("day buckets: range: %w", err)
	}
	if count == 0 {
		return []DayBucket{}, nil
	}

	first := time.UnixMilli(minMs).In(time.Local)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.Local)

	buckets := []DayBucket{}
	for day.UnixMilli() < maxMs {
		next := day.AddDate(0, 0, 1)
		from, to := day.UnixMilli(), next.UnixMilli()
		n, err := s.Count(ctx, Filter{Subject: subject, From: &from, To: &to})
		if err != nil {
			return nil, fmt.Errorf("day buckets: count: %w", err)
		}
		if n > 0 {
			buckets = append(buckets, DayBucket{Date: day.Format("2006-01-02"), ObselCount: n})
		}
		day = next
	}
	return buckets, nil
}
