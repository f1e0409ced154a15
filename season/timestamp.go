package season

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrBadTimestamp marks anchors that cannot be read as a snapshot instant.
var ErrBadTimestamp = errors.New("malformed snapshot timestamp")

const timestampLayout = "20060102150405"

// Timestamp is an archive capture instant in fixed-width YYYYMMDDhhmmss form.
// Plain string comparison of two Timestamps is chronological comparison.
type Timestamp string

// ParseTimestamp accepts only the canonical 14-digit form.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(timestampLayout) {
		return "", errors.Wrapf(ErrBadTimestamp, "%q: want %d digits", s, len(timestampLayout))
	}
	if _, err := time.Parse(timestampLayout, s); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "%q", s), ErrBadTimestamp)
	}
	return Timestamp(s), nil
}

// NormalizeTimestamp converts the other anchor formats seen in the wild
// (YYYYMMDD, YYYY-MM-DD, RFC3339) into a canonical Timestamp.
func NormalizeTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if ts, err := ParseTimestamp(s); err == nil {
		return ts, nil
	}
	for _, layout := range []string{"20060102", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimestampOf(t), nil
		}
	}
	return "", errors.Wrapf(ErrBadTimestamp, "%q: unrecognized format", s)
}

// TimestampOf formats t (in UTC) as a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(timestampLayout))
}

// Time returns the instant in UTC. The zero time is returned for malformed values.
func (ts Timestamp) Time() time.Time {
	t, err := time.Parse(timestampLayout, string(ts))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Date is the calendar day the snapshot was captured on.
func (ts Timestamp) Date() time.Time {
	t := ts.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (ts Timestamp) String() string { return string(ts) }
