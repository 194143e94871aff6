// Package paging computes the sub-range of a filtered, time-ordered
// query result to return, and the matching Content-Range descriptor.
package paging

import (
	"errors"
	"fmt"
)

// DefaultPageSize applies when a request pages without a pageSize.
const DefaultPageSize = 100

// DefaultCeiling caps unbounded, unfiltered reads. Larger result sets
// must page or window explicitly.
const DefaultCeiling = 1000

// ErrRangeNotSatisfiable is returned when a page offset falls outside
// the result set. No clamping is performed.
var ErrRangeNotSatisfiable = errors.New("paging: range not satisfiable")

// ErrTooLarge is returned when an unbounded request would exceed the
// configured ceiling.
var ErrTooLarge = errors.New("paging: result too large")

// Range is a resolved slice of a result set of Total records.
type Range struct {
	Offset int
	Limit  int
	Total  int
}

// Resolve maps an absolute page index onto a result set of total
// records. Negative pages count from the end: offset = total +
// page*pageSize. Offsets outside [0, total] fail; offset == total is an
// empty but valid page.
func Resolve(page, pageSize, total int) (Range, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	offset := page * pageSize
	if page < 0 {
		offset = total + page*pageSize
	}
	if offset < 0 || offset > total {
		return Range{}, fmt.Errorf("%w: offset %d of %d", ErrRangeNotSatisfiable, offset, total)
	}
	limit := pageSize
	if offset+limit > total {
		limit = total - offset
	}
	return Range{Offset: offset, Limit: limit, Total: total}, nil
}

// ContentRange renders the "items first-last/total" descriptor for the
// resolved slice. An empty slice at offset 0 reports items 0-0/total,
// matching the HEAD behaviour of the whole-store descriptor.
func (r Range) ContentRange() string {
	last := r.Offset + r.Limit - 1
	if last < 0 {
		last = 0
	}
	return fmt.Sprintf("items %d-%d/%d", r.Offset, last, r.Total)
}

// WindowRange renders the descriptor for time-window mode: count
// records matched the window out of total in the subject scope.
func WindowRange(count, total int) string {
	last := count - 1
	if last < 0 {
		last = 0
	}
	return fmt.Sprintf("items 0-%d/%d", last, total)
}

// GuardUnbounded rejects an unpaged, unwindowed request whose result
// exceeds ceiling (DefaultCeiling when ceiling <= 0). Explicit failure
// rather than silent truncation.
func GuardUnbounded(count, ceiling int) error {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if count > ceiling {
		return fmt.Errorf("%w: %d records exceed ceiling %d", ErrTooLarge, count, ceiling)
	}
	return nil
}
