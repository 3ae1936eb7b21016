package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrInvalidValue is returned when an update carries a value of the wrong shape.
var ErrInvalidValue = errors.New("invalid filter value")

var errNullValue = errors.New("null is not a valid value")

// Config is the rule set applied to every inbound event.
// A *Config published through Settings is never mutated; updates build a clone.
type Config struct {
	AllowedEventTypes  []string            `json:"allowed_event_types"`
	AllowedTrackEvents []string            `json:"allowed_track_events"` // empty allows every track event
	RequiredProperties map[string][]string `json:"required_properties"`  // event type -> top-level fields
	PropertyFilters    map[string][]any    `json:"property_filters"`     // dot path -> allowed values
	IgnoreTestEvents   bool                `json:"ignore_test_events"`
	TestPatterns       []string            `json:"test_patterns"`
	FilterByDate       bool                `json:"filter_by_date"`
	DateField          string              `json:"date_field"`
	MaxAgeHours        float64             `json:"max_age_hours"`
}

// DefaultConfig returns the startup rule set.
func DefaultConfig() Config {
	return Config{
		AllowedEventTypes: []string{"track", "identify", "page", "screen"},
		AllowedTrackEvents: []string{
			"Button Clicked",
			"Purchase Completed",
			"User Signup",
			"Page Viewed",
			"Product Added",
			"Checkout Started",
		},
		RequiredProperties: map[string][]string{},
		PropertyFilters:    map[string][]any{},
		IgnoreTestEvents:   true,
		TestPatterns:       []string{"test", "debug", "dev", "local"},
		FilterByDate:       true,
		DateField:          "timestamp",
		MaxAgeHours:        24,
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.AllowedEventTypes = append([]string{}, c.AllowedEventTypes...)
	out.AllowedTrackEvents = append([]string{}, c.AllowedTrackEvents...)
	out.TestPatterns = append([]string{}, c.TestPatterns...)

	out.RequiredProperties = make(map[string][]string, len(c.RequiredProperties))
	for k, v := range c.RequiredProperties {
		out.RequiredProperties[k] = append([]string{}, v...)
	}
	out.PropertyFilters = make(map[string][]any, len(c.PropertyFilters))
	for k, v := range c.PropertyFilters {
		out.PropertyFilters[k] = append([]any{}, v...)
	}
	return out
}

// fieldSetters decode one recognised update key into a Config.
var fieldSetters = map[string]func(c *Config, raw json.RawMessage) error{
	"allowed_event_types":  func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.AllowedEventTypes) },
	"allowed_track_events": func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.AllowedTrackEvents) },
	"required_properties":  func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.RequiredProperties) },
	"property_filters":     func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.PropertyFilters) },
	"ignore_test_events":   func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.IgnoreTestEvents) },
	"test_patterns":        func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.TestPatterns) },
	"filter_by_date":       func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.FilterByDate) },
	"date_field":           func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.DateField) },
	"max_age_hours":        func(c *Config, raw json.RawMessage) error { return decodeInto(raw, &c.MaxAgeHours) },
}

func decodeInto[T any](raw json.RawMessage, dst *T) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errNullValue
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// Merge applies the recognised keys of partial onto a clone of c and returns
// it with the sorted list of keys applied. Unknown keys are ignored. On any
// decode error c is left as it was and no partial result is returned.
func (c Config) Merge(partial map[string]json.RawMessage) (Config, []string, error) {
	next := c.Clone()

	keys := make([]string, 0, len(partial))
	for k := range partial {
		if _, ok := fieldSetters[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fieldSetters[k](&next, partial[k]); err != nil {
			return c, nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, k, err)
		}
	}
	next.normalize()
	return next, keys, nil
}

// normalize replaces nil collections with empty ones.
func (c *Config) normalize() {
	if c.AllowedEventTypes == nil {
		c.AllowedEventTypes = []string{}
	}
	if c.AllowedTrackEvents == nil {
		c.AllowedTrackEvents = []string{}
	}
	if c.TestPatterns == nil {
		c.TestPatterns = []string{}
	}
	if c.RequiredProperties == nil {
		c.RequiredProperties = map[string][]string{}
	}
	if c.PropertyFilters == nil {
		c.PropertyFilters = map[string][]any{}
	}
}

// Settings publishes the current Config to concurrent readers. Readers get
// an immutable pointer; writers serialise on mu and swap in a new Config, so a
// reader observes either the old or the new rule set, never a mix.
type Settings struct {
	mu  sync.Mutex
	cur atomic.Pointer[Config]
}

// NewSettings returns Settings initialised with a copy of cfg.
func NewSettings(cfg Config) *Settings {
	s := &Settings{}
	c := cfg.Clone()
	c.normalize()
	s.cur.Store(&c)
	return s
}

// Current returns the live rule set. Callers must treat it as read-only.
func (s *Settings) Current() *Config {
	return s.cur.Load()
}

// Snapshot returns a deep copy of the current rule set.
func (s *Settings) Snapshot() Config {
	return s.cur.Load().Clone()
}

// Update merges partial into the current rule set and publishes the result.
func (s *Settings) Update(partial map[string]json.RawMessage) (Config, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, keys, err := s.cur.Load().Merge(partial)
	if err != nil {
		return s.Snapshot(), nil, err
	}
	s.cur.Store(&next)
	return next.Clone(), keys, nil
}
