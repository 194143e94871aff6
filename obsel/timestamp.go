package obsel

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// ErrBadTimestamp is returned when a from/to value is neither an
// integer millisecond count nor a YYYY/MM/DD date.
var ErrBadTimestamp = errors.New("obsel: unparseable timestamp")

var calendarDate = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)

// ParseTimestamp converts a filter value to milliseconds since epoch.
// Plain integers are taken as milliseconds. YYYY/MM/DD dates resolve to
// local midnight; when the value is an ending bound the following
// midnight is used instead, so "to 2024/01/05" keeps the whole of
// January 5th in range despite the strict end < to comparison.
func ParseTimestamp(s string, endingBound bool) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	m := calendarDate.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrBadTimestamp
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if endingBound {
		d = d.AddDate(0, 0, 1)
	}
	return d.UnixMilli(), nil
}

// FormatTime renders a millisecond timestamp as local-time ISO-8601,
// the form used for the derived "date" field.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).In(time.Local).Format("2006-01-02T15:04:05")
}
