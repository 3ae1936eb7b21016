package filter

import (
	"strings"

	"github.com/luiza-sangalli/segment/internal/models"
)

// Resolve walks doc along a dot-separated path such as "traits.plan" and
// returns the value found there. A missing key or a non-object intermediate
// value yields (nil, false); malformed input never panics.
func Resolve(doc any, path string) (any, bool) {
	current := doc
	for _, key := range strings.Split(path, ".") {
		var (
			v  any
			ok bool
		)
		switch m := current.(type) {
		case map[string]any:
			v, ok = m[key]
		case models.Document:
			v, ok = m[key]
		default:
			return nil, false
		}
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
