package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/dynresp/view"
)

// FlattenText renders a structured value as indented plain text.
//
//	name: demo
//	tags:
//	  - a
//	  - b
//	owner:
//	  id: 7
//
// Object keys keep insertion order; plain maps are sorted by key.
func FlattenText(v any) string {
	var b strings.Builder
	flatten(&b, v, 0)
	return b.String()
}

func flatten(b *strings.Builder, v any, depth int) {
	pad := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case view.Object:
		for _, f := range t {
			field(b, pad, f.Key, f.Value, depth)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			field(b, pad, k, t[k], depth)
		}
	case []any:
		items(b, pad, t, depth)
	default:
		b.WriteString(pad)
		b.WriteString(scalar(v))
		b.WriteByte('\n')
	}
}

func field(b *strings.Builder, pad, key string, v any, depth int) {
	switch t := v.(type) {
	case view.Object, map[string]any:
		fmt.Fprintf(b, "%s%s:\n", pad, key)
		flatten(b, t, depth+1)
	case []any:
		fmt.Fprintf(b, "%s%s:\n", pad, key)
		items(b, pad+"  ", t, depth+1)
	default:
		fmt.Fprintf(b, "%s%s: %s\n", pad, key, scalar(v))
	}
}

func items(b *strings.Builder, pad string, list []any, depth int) {
	for _, e := range list {
		switch e.(type) {
		case view.Object, map[string]any, []any:
			fmt.Fprintf(b, "%s-\n", pad)
			flatten(b, e, depth+1)
		default:
			fmt.Fprintf(b, "%s- %s\n", pad, scalar(e))
		}
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
