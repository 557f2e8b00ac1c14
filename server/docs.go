package server

import (
	"embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hazyhaar/dynresp/negotiate"
	"github.com/hazyhaar/dynresp/pipeline"
	"github.com/hazyhaar/dynresp/view"
)

//go:embed static
var staticFS embed.FS

func serveStatic(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := staticFS.ReadFile(name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(b)
	}
}

func (s *Server) openAPI(w http.ResponseWriter, r *http.Request) {
	b, err := json.MarshalIndent(s.openAPIDocument(), "", "  ")
	if err != nil {
		http.Error(w, "openapi: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

// openAPIDocument describes the pipeline routes as an OpenAPI 3.1 document.
func (s *Server) openAPIDocument() view.Object {
	formats := make([]any, 0, len(negotiate.Representations()))
	for _, rep := range negotiate.Representations() {
		formats = append(formats, rep.MediaType())
	}
	formatParam := view.Object{
		{Key: "name", Value: negotiate.OverrideParam},
		{Key: "in", Value: "query"},
		{Key: "required", Value: false},
		{Key: "description", Value: "Force the response representation"},
		{Key: "schema", Value: view.Object{{Key: "type", Value: "string"}, {Key: "examples", Value: formats}}},
	}

	paths := view.Object{}
	for _, rt := range s.routes {
		item := view.Object{}
		if v, ok := paths.Get(rt.Pattern); ok {
			item = v.(view.Object)
		}
		item = item.Set(strings.ToLower(rt.Method), s.operation(rt, formatParam))
		paths = paths.Set(rt.Pattern, item)
	}

	schemes := view.Object{{Key: "basic", Value: view.Object{{Key: "type", Value: "http"}, {Key: "scheme", Value: "basic"}}}}
	if s.tokens != nil {
		schemes = schemes.Set("bearer", view.Object{
			{Key: "type", Value: "http"}, {Key: "scheme", Value: "bearer"}, {Key: "bearerFormat", Value: "JWT"},
		})
	}
	return view.Object{
		{Key: "openapi", Value: "3.1.0"},
		{Key: "info", Value: view.Object{{Key: "title", Value: "dynresp"}, {Key: "version", Value: s.version}}},
		{Key: "paths", Value: paths},
		{Key: "components", Value: view.Object{{Key: "securitySchemes", Value: schemes}}},
	}
}

func (s *Server) operation(rt pipeline.Route, formatParam view.Object) view.Object {
	content := view.Object{}
	for _, rep := range negotiate.Representations() {
		content = content.Set(rep.MediaType(), view.Object{})
	}
	responses := view.Object{
		{Key: "200", Value: view.Object{{Key: "description", Value: "Negotiated response"}, {Key: "content", Value: content}}},
		{Key: "404", Value: view.Object{{Key: "description", Value: "Not found, with suggestions"}}},
		{Key: "500", Value: view.Object{{Key: "description", Value: "Rendering failed"}}},
	}
	op := view.Object{
		{Key: "summary", Value: rt.Summary},
		{Key: "operationId", Value: operationID(rt)},
		{Key: "parameters", Value: []any{formatParam}},
	}
	if rt.Method == http.MethodPost {
		op = op.Set("requestBody", view.Object{
			{Key: "required", Value: true},
			{Key: "content", Value: view.Object{{Key: "application/json", Value: view.Object{}}}},
		})
		responses = responses.Set("422", view.Object{{Key: "description", Value: "Validation error"}})
	}
	if !rt.Requires.IsPublic() {
		sec := []any{view.Object{{Key: "basic", Value: []any{}}}}
		if s.tokens != nil {
			sec = append(sec, view.Object{{Key: "bearer", Value: []any{}}})
		}
		op = op.Set("security", sec)
		op = op.Set("x-requires", rt.Requires.String())
		responses = responses.Set("401", view.Object{{Key: "description", Value: "Authentication required"}})
		if len(rt.Requires.Roles) > 0 {
			responses = responses.Set("403", view.Object{{Key: "description", Value: "Missing role"}})
		}
	}
	return op.Set("responses", responses)
}

func operationID(rt pipeline.Route) string {
	name := strings.NewReplacer("/", "_", "-", "_").Replace(strings.Trim(rt.Pattern, "/"))
	if name == "" {
		name = "root"
	}
	return strings.ToLower(rt.Method) + "_" + name
}
