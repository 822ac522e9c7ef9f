package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/petal-labs/taskgate/backend"
)

// Timestamp is a parsed ISO-8601 value that remembers whether the input had a
// UTC offset, so it can be written back in the same form.
type Timestamp struct {
	Time  time.Time
	Zoned bool
}

var zonedLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04-07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-0700",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04:05-07",
	"20060102T150405-07:00",
	"20060102T150405-0700",
	"20060102T1504-0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405",
	"20060102T1504",
	"20060102",
}

// ParseISO parses an ISO-8601 date or date-time in extended or basic form, with
// optional fractional seconds. Offsets may be written +HH:MM, +HHMM or +HH and
// a trailing "Z" is read as UTC. Inputs without an offset stay naive.
func ParseISO(value string) (Timestamp, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return Timestamp{}, fmt.Errorf("empty timestamp")
	}
	if strings.HasSuffix(raw, "Z") || strings.HasSuffix(raw, "z") {
		raw = raw[:len(raw)-1] + "+00:00"
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Time: t, Zoned: true}, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("%q is not an ISO-8601 timestamp", value)
}

// Add returns the timestamp shifted by d, keeping its zone form.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return Timestamp{Time: ts.Time.Add(d), Zoned: ts.Zoned}
}

// String formats as YYYY-MM-DDTHH:MM:SS[.ffffff][+HH:MM]. Microseconds are
// written only when non-zero; the offset only for zoned values.
func (ts Timestamp) String() string {
	layout := "2006-01-02T15:04:05"
	if ts.Time.Nanosecond()/int(time.Microsecond) != 0 {
		layout += ".000000"
	}
	if ts.Zoned {
		layout += "-07:00"
	}
	return ts.Time.Format(layout)
}

// parseField validates a date argument, returning a domain rejection that
// names the field on bad input.
func parseField(field, value string) (Timestamp, *backend.Failure) {
	ts, err := ParseISO(value)
	if err != nil {
		return Timestamp{}, backend.Rejectf("invalid date format for %s: %v", field, err)
	}
	return ts, nil
}
