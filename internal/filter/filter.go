// Package filter decides whether an inbound analytics event is kept for
// processing. Rules run in a fixed order and the first failing rule rejects.
package filter

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/luiza-sangalli/segment/internal/models"
)

// Stage names the rule that rejected an event.
type Stage string

const (
	StageEventType      Stage = "event_type"
	StageTrackEvent     Stage = "track_event"
	StageTestPattern    Stage = "test_pattern"
	StageRequiredField  Stage = "required_property"
	StagePropertyFilter Stage = "property_filter"
	StageFreshness      Stage = "freshness"
)

// Decision is the outcome of Evaluate. Stage and Reason are set only on reject.
// Freshness is set whenever the freshness stage ran.
type Decision struct {
	Accepted  bool       `json:"accepted"`
	Stage     Stage      `json:"stage,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Freshness *Freshness `json:"freshness,omitempty"`
}

func reject(stage Stage, format string, args ...any) Decision {
	return Decision{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// ShouldProcess reports whether doc passes every rule in cfg.
func ShouldProcess(doc models.Document, cfg *Config, now time.Time) bool {
	return Evaluate(doc, cfg, now).Accepted
}

// Evaluate runs the rule chain against doc. It depends only on its arguments.
func Evaluate(doc models.Document, cfg *Config, now time.Time) Decision {
	eventType := strings.ToLower(doc.Type())

	if !slices.Contains(cfg.AllowedEventTypes, eventType) {
		return reject(StageEventType, "event type not allowed: %q", eventType)
	}

	if eventType == "track" && len(cfg.AllowedTrackEvents) > 0 {
		name := doc.StringOr("event", "")
		if !slices.Contains(cfg.AllowedTrackEvents, name) {
			return reject(StageTrackEvent, "track event not allowed: %q", name)
		}
	}

	if cfg.IgnoreTestEvents {
		if candidate, pattern, ok := matchTestPattern(doc, cfg.TestPatterns); ok {
			return reject(StageTestPattern, "test pattern %q found in %q", pattern, candidate)
		}
	}

	for _, field := range cfg.RequiredProperties[eventType] {
		if !models.Truthy(doc[field]) {
			return reject(StageRequiredField, "required property missing: %s", field)
		}
	}

	paths := make([]string, 0, len(cfg.PropertyFilters))
	for p := range cfg.PropertyFilters {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, path := range paths {
		v, _ := Resolve(doc, path)
		if models.Truthy(v) && !containsValue(cfg.PropertyFilters[path], v) {
			return reject(StagePropertyFilter, "value not allowed for %s: %v", path, v)
		}
	}

	if cfg.FilterByDate {
		f := CheckFreshness(doc, cfg.DateField, cfg.MaxAgeHours, now)
		if !f.Passes() {
			d := reject(StageFreshness, "event is %.1fh old (max %gh)", f.AgeHours, cfg.MaxAgeHours)
			d.Freshness = &f
			return d
		}
		return Decision{Accepted: true, Freshness: &f}
	}

	return Decision{Accepted: true}
}

// matchTestPattern lower-cases each identifying field and looks for any pattern in it.
func matchTestPattern(doc models.Document, patterns []string) (candidate, pattern string, ok bool) {
	candidates := []string{
		models.Stringify(doc["event"]),
		models.Stringify(doc["userId"]),
		stringifyObject(doc["properties"]),
		stringifyObject(doc["traits"]),
	}
	for _, p := range candidates {
		lower := strings.ToLower(p)
		for _, pat := range patterns {
			if strings.Contains(lower, pat) {
				return p, pat, true
			}
		}
	}
	return "", "", false
}

// stringifyObject renders an absent object as "{}".
func stringifyObject(v any) string {
	if v == nil {
		return "{}"
	}
	return models.Stringify(v)
}

func containsValue(allowed []any, v any) bool {
	for _, a := range allowed {
		if reflect.DeepEqual(a, v) {
			return true
		}
	}
	return false
}
