// Package datetools encodes time values as sortable strings for indexing.
//
// An encoded value keeps only the leading components up to its resolution:
// "2004" (year), "200409" (month), "20040921" (day), and so on down to
// millisecond. Encoded values of the same resolution sort lexicographically
// in time order, so term-range scans over them are range queries over time.
package datetools

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resolution is the coarsest time unit an encoded value keeps.
type Resolution int

const (
	Year Resolution = iota
	Month
	Day
	Hour
	Minute
	Second
	Millisecond
)

var layouts = map[Resolution]string{
	Year:   "2006",
	Month:  "200601",
	Day:    "20060102",
	Hour:   "2006010215",
	Minute: "200601021504",
	Second: "20060102150405",
}

var resolutionNames = map[Resolution]string{
	Year:        "year",
	Month:       "month",
	Day:         "day",
	Hour:        "hour",
	Minute:      "minute",
	Second:      "second",
	Millisecond: "millisecond",
}

func (r Resolution) String() string {
	if name, ok := resolutionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// ParseResolution maps a config name like "day" to its Resolution.
func ParseResolution(name string) (Resolution, error) {
	for res, n := range resolutionNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return res, nil
		}
	}
	return 0, fmt.Errorf("unknown date resolution %q", name)
}

// Format encodes t at the given resolution. The time is converted to UTC
// before encoding so index values are zone-independent.
func Format(t time.Time, res Resolution) string {
	u := t.UTC()
	if res == Millisecond {
		return u.Format(layouts[Second]) + fmt.Sprintf("%03d", u.Nanosecond()/int(time.Millisecond))
	}
	layout, ok := layouts[res]
	if !ok {
		layout = layouts[Second]
	}
	return u.Format(layout)
}

// Parse decodes an encoded value back to a UTC time. The resolution is
// inferred from the string length; components finer than the resolution
// come back as their zero value (month and day as 1, time fields as 0).
func Parse(s string) (time.Time, error) {
	if len(s) == len("20060102150405")+3 {
		sec, err := time.ParseInLocation(layouts[Second], s[:14], time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date value %q: %w", s, err)
		}
		ms, err := strconv.Atoi(s[14:])
		if err != nil || ms < 0 {
			return time.Time{}, fmt.Errorf("invalid date value %q: bad millisecond part", s)
		}
		return sec.Add(time.Duration(ms) * time.Millisecond), nil
	}

	for _, layout := range layouts {
		if len(layout) != len(s) {
			continue
		}
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date value %q: %w", s, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date value %q: unrecognized length %d", s, len(s))
}

// Round truncates t to the given resolution, in UTC. Format(Round(t, r), r)
// equals Format(t, r) for every t.
func Round(t time.Time, res Resolution) time.Time {
	u := t.UTC()
	switch res {
	case Year:
		return time.Date(u.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Day:
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	case Hour:
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
	case Minute:
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), 0, 0, time.UTC)
	case Second:
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, time.UTC)
	default:
		return u.Truncate(time.Millisecond)
	}
}

// inputLayouts are accepted when turning raw document values into times.
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInput parses a raw document field value (RFC3339 or a common
// date-time form) so it can then be encoded with Format.
func ParseInput(s string) (time.Time, error) {
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date value %q", s)
}
