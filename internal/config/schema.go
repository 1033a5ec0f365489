// Package config is the versioned, hot-reloadable settings store. A single
// schema lists every setting with its flat dot-notation key, default and
// description; the defaults record, the generated defaults.jsonc and
// override validation all derive from it.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Field describes one setting in the schema.
type Field struct {
	// Key is the flat dot-notation name, e.g. "projects.maxDepth".
	Key string
	// Default is the value used when the user has no override.
	Default any
	// Description is emitted as a comment into defaults.jsonc.
	Description string
	// Min/Max clamp numeric overrides. Nil means unbounded.
	Min, Max *float64
}

func bound(v float64) *float64 { return &v }

// schema is the single source of truth for every setting.
var schema = []Field{
	{
		Key:         "resolver",
		Default:     "projects",
		Description: `project resolver: "projects" (built-in scan) or an external command line printing "score path" lines`,
	},
	{
		Key:         "projects.ignore",
		Default:     []any{"node_modules", ".git", "vendor", "target", "dist", "build"},
		Description: "directory basenames skipped by the built-in project scan",
	},
	{
		Key:         "projects.maxDepth",
		Default:     3,
		Description: "how many levels below $HOME the project scan descends",
		Min:         bound(1),
	},
	{
		Key:         "background.image",
		Default:     nil,
		Description: "absolute path of a background image, or null for none",
	},
	{
		Key:         "background.size",
		Default:     "cover",
		Description: "CSS background-size for the image",
	},
	{
		Key:         "background.opacity",
		Default:     0.15,
		Description: "background image opacity",
		Min:         bound(0),
		Max:         bound(1),
	},
	{
		Key:         "background.filter",
		Default:     nil,
		Description: "CSS filter applied to the background, or null",
	},
	{
		Key:         "terminal.fontSize",
		Default:     14,
		Description: "terminal font size in px",
		Min:         bound(1),
	},
	{
		Key:         "terminal.fontFamily",
		Default:     "monospace",
		Description: "terminal font family",
	},
	{
		Key:         "window.padding",
		Default:     0,
		Description: "padding around the terminal in px",
		Min:         bound(0),
	},
}

// defaultTree builds the nested defaults record from the schema.
func defaultTree() map[string]any {
	tree := map[string]any{}
	for _, f := range schema {
		setPath(tree, f.Key, f.Default)
	}
	return tree
}

// setPath writes value at a dot-separated path, creating intermediate maps.
func setPath(tree map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	cur := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// flatten converts a possibly-nested override document into flat dot keys.
// Users may mix both forms; nested maps win over a flat key with the same
// prefix only by arriving later in iteration, so normalize everything flat.
func flatten(prefix string, v any, out map[string]any) {
	m, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return
	}
	// Every map is treated as a nesting level; none of the schema's leaves
	// are maps.
	for k, child := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flatten(key, child, out)
	}
}

// coerce validates an override against the field's default type and applies
// numeric clamping. ok is false for type mismatches, which are dropped
// rather than poisoning the whole record.
func coerce(f Field, v any) (any, bool) {
	switch f.Default.(type) {
	case int, int64, float64:
		if _, isNum := toFloat(v); !isNum {
			return nil, false
		}
		return clamp(f, v), true
	case string:
		s, ok := v.(string)
		return s, ok
	case bool:
		b, ok := v.(bool)
		return b, ok
	case []any:
		arr, ok := v.([]any)
		return arr, ok
	case nil:
		// Nullable string fields accept null or a string.
		if v == nil {
			return nil, true
		}
		s, ok := v.(string)
		return s, ok
	default:
		return v, true
	}
}

// clamp applies schema bounds to a numeric override value.
func clamp(f Field, v any) any {
	num, ok := toFloat(v)
	if !ok {
		return v
	}
	if f.Min != nil && num < *f.Min {
		num = *f.Min
	}
	if f.Max != nil && num > *f.Max {
		num = *f.Max
	}
	if _, isInt := f.Default.(int); isInt {
		return int(num)
	}
	return num
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// fieldByKey indexes the schema for override validation.
var fieldByKey = func() map[string]Field {
	m := make(map[string]Field, len(schema))
	for _, f := range schema {
		m[f.Key] = f
	}
	return m
}()

// renderDefaultsJSONC emits the documentation file regenerated on startup:
// every schema key in flat form with its default and description. The store
// accepts this flat form back as overrides, so the file doubles as a
// template.
func renderDefaultsJSONC() string {
	var b strings.Builder
	b.WriteString("// muxtunnel settings reference — regenerated on every startup.\n")
	b.WriteString("// Copy keys into settings.json (flat dot form or nested) to override.\n")
	b.WriteString("{\n")
	keys := make([]string, 0, len(schema))
	for _, f := range schema {
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		f := fieldByKey[key]
		fmt.Fprintf(&b, "  // %s\n", f.Description)
		fmt.Fprintf(&b, "  %q: %s", f.Key, renderValue(f.Default))
		if i < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}
