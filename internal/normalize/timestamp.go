package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// layouts are tried in order before the permissive fallback parser.
// All are parsed in UTC, so zone-less readings are taken as UTC.
var layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Mon, 02 Jan 2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
}

// ParseTimestamp coerces a textual date to an absolute UTC instant.
// It reports false when the value is empty or cannot be parsed.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return resolveZone(t)
		}
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return resolveZone(t)
}

// zoneOffsets holds the abbreviations feeds commonly emit, in seconds east
// of UTC. The time package gives any abbreviation it does not know a zero
// offset, so these have to be resolved here.
var zoneOffsets = map[string]int{
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"AKST": -9 * 3600, "AKDT": -8 * 3600,
	"HST": -10 * 3600,
	"WET": 0, "WEST": 1 * 3600, "BST": 1 * 3600,
	"CET": 1 * 3600, "CEST": 2 * 3600,
	"EET": 2 * 3600, "EEST": 3 * 3600,
	"MSK": 3 * 3600,
	"SGT": 8 * 3600, "HKT": 8 * 3600,
	"KST": 9 * 3600, "JST": 9 * 3600,
	"AEST": 10 * 3600, "AEDT": 11 * 3600,
}

// resolveZone converts t to UTC. A zero-offset zone named by an unknown
// abbreviation cannot be placed in time and is reported as unparseable.
func resolveZone(t time.Time) (time.Time, bool) {
	name, offset := t.Zone()
	if offset != 0 {
		return t.UTC(), true
	}
	switch strings.ToUpper(name) {
	case "", "UTC", "GMT", "UT", "Z":
		return t.UTC(), true
	}
	secs, ok := zoneOffsets[strings.ToUpper(name)]
	if !ok {
		return time.Time{}, false
	}
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.FixedZone(name, secs))
	return local.UTC(), true
}

// CoerceUTC converts a structured time to UTC, treating the zero value as absent.
func CoerceUTC(t *time.Time) (time.Time, bool) {
	if t == nil || t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}
