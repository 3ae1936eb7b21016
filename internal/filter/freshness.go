package filter

import (
	"errors"
	"strings"
	"time"

	"github.com/luiza-sangalli/segment/internal/models"
)

// FreshnessStatus tags the outcome of a freshness check.
type FreshnessStatus string

const (
	Fresh FreshnessStatus = "fresh"
	Stale FreshnessStatus = "stale"
	// Indeterminate means the timestamp was missing or unusable; it passes.
	Indeterminate FreshnessStatus = "indeterminate"
)

// Reasons attached to an Indeterminate result.
const (
	ReasonMissing     = "missing"
	ReasonNotAString  = "not_a_string"
	ReasonUnparseable = "unparseable"
)

// ErrUnparseableTimestamp is returned by ParseTimestamp when no layout matches.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// Freshness is the result of CheckFreshness.
type Freshness struct {
	Status   FreshnessStatus `json:"status"`
	AgeHours float64         `json:"age_hours,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Raw      any             `json:"raw,omitempty"`
}

// Passes reports whether the event survives the freshness stage.
func (f Freshness) Passes() bool {
	return f.Status != Stale
}

// isoLayouts are tried in order after "Z" has been rewritten to "+00:00".
// Fractional seconds are optional in every layout.
var isoLayouts = []struct {
	layout string
	zoned  bool
}{
	{"2006-01-02T15:04:05.999999999-07:00", true},
	{"2006-01-02T15:04:05.999999999-0700", true},
	{"2006-01-02 15:04:05.999999999-07:00", true},
	{"2006-01-02T15:04-07:00", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// fallbackLayout is the fixed microsecond pattern Segment libraries emit.
const fallbackLayout = "2006-01-02T15:04:05.000000Z"

// ParseTimestamp parses an ISO-8601-like timestamp. zoned reports whether the
// input carried an explicit offset; zone-less values are returned as UTC.
// Surrounding whitespace is not accepted.
func ParseTimestamp(raw string) (t time.Time, zoned bool, err error) {
	normalized := strings.ReplaceAll(raw, "Z", "+00:00")
	for _, l := range isoLayouts {
		if t, err := time.Parse(l.layout, normalized); err == nil {
			return t.UTC(), l.zoned, nil
		}
	}
	if t, err := time.Parse(fallbackLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	return time.Time{}, false, ErrUnparseableTimestamp
}

// CheckFreshness evaluates doc[field] against a rolling window of maxAgeHours
// ending at now. Missing, non-string and unparseable values are Indeterminate
// and pass; only a parsed timestamp older than the window is Stale.
func CheckFreshness(doc models.Document, field string, maxAgeHours float64, now time.Time) Freshness {
	raw := doc[field]
	if !models.Truthy(raw) {
		return Freshness{Status: Indeterminate, Reason: ReasonMissing}
	}

	s, ok := raw.(string)
	if !ok {
		return Freshness{Status: Indeterminate, Reason: ReasonNotAString, Raw: raw}
	}

	eventTime, _, err := ParseTimestamp(s)
	if err != nil {
		return Freshness{Status: Indeterminate, Reason: ReasonUnparseable, Raw: raw}
	}

	hours := now.Sub(eventTime).Hours()
	if hours <= maxAgeHours {
		return Freshness{Status: Fresh, AgeHours: hours}
	}
	return Freshness{Status: Stale, AgeHours: hours, Raw: raw}
}
