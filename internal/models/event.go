package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Document is one inbound analytics event as decoded from JSON.
// No schema is enforced; every accessor tolerates missing keys and wrong types.
type Document map[string]any

// Entry is one slot of the recent-events buffer.
// Payload is the raw document exactly as received and is never mutated.
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"timestamp"`
	Payload    Document  `json:"data"`
}

// String returns the value at key when it is a string.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// StringOr returns the string at key, or def when absent or not a string.
func (d Document) StringOr(key, def string) string {
	if s, ok := d.String(key); ok {
		return s
	}
	return def
}

// Map returns the nested object at key, or nil.
func (d Document) Map(key string) map[string]any {
	m, _ := d[key].(map[string]any)
	return m
}

// Type returns the raw event type, or "" when absent or not a string.
func (d Document) Type() string {
	return d.StringOr("type", "")
}

// Truthy reports whether v is a non-empty, non-zero value in the sense used
// by filter rules: nil, false, "", 0 and empty containers are all falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(t) > 0
	case Document:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

// Stringify renders v as a flat string: strings as-is, nil as "",
// numbers without exponent noise, and everything else as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
