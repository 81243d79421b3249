package export

import (
	"math"
	"time"

	"github.com/wesm/imsgexport/internal/chatdb"
)

// DateLayout is the accepted --start-date/--end-date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// DefaultWindow is how far back an export reaches without --start-date.
const DefaultWindow = 7 * 24 * time.Hour

// Range is an inclusive time window.
type Range struct {
	Start time.Time
	End   time.Time
}

// StartNanos returns Start as a chat.db date value.
func (r Range) StartNanos() int64 { return EpochNanos(r.Start) }

// EndNanos returns End as a chat.db date value.
func (r Range) EndNanos() int64 { return EpochNanos(r.End) }

// ParseDate parses a YYYY-MM-DD string as midnight UTC on that day,
// regardless of the local time zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, NewArgumentError("invalid date format: %q. Expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ResolveRange turns optional start/end date strings into a concrete range.
// An empty start means now minus window (DefaultWindow if window <= 0); an
// empty end means now. Start after End is not an error; such a range
// matches nothing.
func ResolveRange(start, end string, now time.Time, window time.Duration) (Range, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	now = now.UTC()

	r := Range{Start: now.Add(-window), End: now}
	if start != "" {
		t, err := ParseDate(start)
		if err != nil {
			return Range{}, err
		}
		r.Start = t
	}
	if end != "" {
		t, err := ParseDate(end)
		if err != nil {
			return Range{}, err
		}
		r.End = t
	}
	return r, nil
}

// EpochNanos returns t as nanoseconds since chatdb.Epoch. Times too far
// from the epoch to fit in an int64 yield 0.
func EpochNanos(t time.Time) int64 {
	d := t.Sub(chatdb.Epoch)
	// Sub saturates instead of overflowing.
	if d == math.MaxInt64 || d == math.MinInt64 {
		return 0
	}
	return int64(d)
}
