package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sort"
	"strings"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// Templates is the html/template view set. Views are addressed by file
// name ("example.html"); fragments use the "partial_" prefix.
type Templates struct {
	set *template.Template
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
	"kindOf": func(v any) string {
		switch v.(type) {
		case map[string]any:
			return "object"
		case []any:
			return "list"
		case nil:
			return "null"
		default:
			return "scalar"
		}
	},
	"sortedKeys": func(m map[string]any) []string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	},
	"title": func(s string) string {
		s = strings.ReplaceAll(s, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// NewTemplates loads the built-in views. When dir is non-empty, *.html
// files found there are parsed afterwards and replace built-in views of
// the same name.
func NewTemplates(dir string) (*Templates, error) {
	set, err := template.New("views").Funcs(funcs).ParseFS(builtinTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse built-in templates: %w", err)
	}
	if dir != "" {
		matches, err := fs.Glob(os.DirFS(dir), "*.html")
		if err != nil {
			return nil, fmt.Errorf("render: scan %s: %w", dir, err)
		}
		if len(matches) > 0 {
			if set, err = set.ParseFS(os.DirFS(dir), "*.html"); err != nil {
				return nil, fmt.Errorf("render: parse %s: %w", dir, err)
			}
		}
	}
	return &Templates{set: set}, nil
}

// Lookup reports whether a view with that name exists.
func (t *Templates) Lookup(name string) bool {
	return t.set.Lookup(name) != nil
}

// Execute renders the named view with data.
func (t *Templates) Execute(ctx context.Context, name string, data any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !t.Lookup(name) {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Names lists the renderable views in lexical order.
func (t *Templates) Names() []string {
	var names []string
	for _, tmpl := range t.set.Templates() {
		if strings.HasSuffix(tmpl.Name(), ".html") && tmpl.Name() != "layout.html" {
			names = append(names, tmpl.Name())
		}
	}
	sort.Strings(names)
	return names
}
