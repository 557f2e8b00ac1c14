package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/glamour"
	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/dynresp/negotiate"
	"github.com/hazyhaar/dynresp/view"
)

type fakeViews struct {
	names    map[string]bool
	executed []string
	err      error
}

func newFakeViews(names ...string) *fakeViews {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return &fakeViews{names: m}
}

func (f *fakeViews) Lookup(name string) bool { return f.names[name] }

func (f *fakeViews) Execute(_ context.Context, name string, data any) ([]byte, error) {
	f.executed = append(f.executed, name)
	if f.err != nil {
		return nil, f.err
	}
	if !f.names[name] {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	return []byte("<html><head><title>Fake</title></head><body><h1>" + name + "</h1></body></html>"), nil
}

type fakeBrowser struct {
	png, pdf []byte
	err      error
	scale    float64
}

func (f *fakeBrowser) Screenshot(context.Context, []byte) ([]byte, error) { return f.png, f.err }

func (f *fakeBrowser) PDF(_ context.Context, _ []byte, scale float64) ([]byte, error) {
	f.scale = scale
	return f.pdf, f.err
}

func sample() view.Object {
	return view.Object{
		{Key: "name", Value: "demo"},
		{Key: "count", Value: json.Number("3")},
		{Key: "tags", Value: []any{"a", "b"}},
		{Key: "owner", Value: view.Object{{Key: "id", Value: json.Number("7")}, {Key: "active", Value: true}}},
	}
}

func TestRender_StructuredIsLossless(t *testing.T) {
	// WHAT: Structured output decodes back to the exact input value.
	// WHY: API clients rely on the JSON being the handler's result untouched.
	r := New(nil)
	res := &view.Result{Data: sample()}

	out, err := r.Render(context.Background(), res, negotiate.MustCompose(false, negotiate.Structured), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.MediaType != "application/json" {
		t.Errorf("media type = %q", out.MediaType)
	}
	got, err := view.Decode(out.Body)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(any(sample()), got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(string(out.Body), `{"name":"demo","count":3,`) {
		t.Errorf("key order not kept: %s", out.Body)
	}
}

func TestRender_PlainTextKeepsOrder(t *testing.T) {
	r := New(nil)
	out, err := r.Render(context.Background(), &view.Result{Data: sample()}, negotiate.MustCompose(false, negotiate.PlainText), Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := "name: demo\n" +
		"count: 3\n" +
		"tags:\n" +
		"  - a\n" +
		"  - b\n" +
		"owner:\n" +
		"  id: 7\n" +
		"  active: true\n"
	if diff := cmp.Diff(want, string(out.Body)); diff != "" {
		t.Errorf("plain text (-want +got):\n%s", diff)
	}
}

func TestFlattenText_Shapes(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"scalar", "hi", "hi\n"},
		{"null", nil, "null\n"},
		{"top-level list", []any{"a", float64(1.5)}, "- a\n- 1.5\n"},
		{"list of objects", []any{view.Object{{Key: "k", Value: "v"}}}, "-\n  k: v\n"},
		{"plain map sorted", map[string]any{"b": 2, "a": 1}, "a: 1\nb: 2\n"},
		{"nested list", view.Object{{Key: "m", Value: []any{[]any{"x"}}}}, "m:\n  -\n    - x\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, FlattenText(tc.in)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestRender_FragmentViewName(t *testing.T) {
	// WHAT: partial selects "partial_<view>" and falls back to the full view.
	// WHY: not every view ships a fragment variant.
	views := newFakeViews("example.html", "partial_example.html", "status.html")
	r := New(views)
	ctx := context.Background()

	if _, err := r.Render(ctx, view.OK("example.html", sample()), negotiate.MustCompose(true, negotiate.Markup), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render(ctx, view.OK("status.html", sample()), negotiate.MustCompose(true, negotiate.Markup), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render(ctx, view.OK("example.html", sample()), negotiate.MustCompose(false, negotiate.Markup), Options{}); err != nil {
		t.Fatal(err)
	}
	want := []string{"partial_example.html", "status.html", "example.html"}
	if diff := cmp.Diff(want, views.executed); diff != "" {
		t.Errorf("executed views (-want +got):\n%s", diff)
	}
}

func TestRender_StatusAndHeaders(t *testing.T) {
	r := New(newFakeViews("default.html"))
	res := &view.Result{Data: sample(), Status: http.StatusCreated, Header: http.Header{"X-Test": {"1"}}}

	out, err := r.Render(context.Background(), res, negotiate.MustCompose(false, negotiate.Markup), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != http.StatusCreated {
		t.Errorf("status = %d", out.Status)
	}
	if out.Header.Get("X-Test") != "1" || out.Header.Get("X-Representation") != "markup" {
		t.Errorf("headers = %v", out.Header)
	}
	if out.MediaType != "text/html; charset=utf-8" {
		t.Errorf("media type = %q", out.MediaType)
	}
}

func TestRender_BackendFailureLeaksNothing(t *testing.T) {
	// WHAT: A failing rasterizer or printer yields *BackendError and no response.
	// WHY: half-rendered images or documents must never reach the client.
	boom := errors.New("browser crashed")
	fb := &fakeBrowser{png: []byte("partial"), pdf: []byte("partial"), err: boom}
	r := New(newFakeViews("default.html"), WithRasterizer(fb), WithPrinter(fb))

	for _, rep := range []negotiate.Representation{negotiate.Image, negotiate.Document} {
		out, err := r.Render(context.Background(), &view.Result{Data: sample()}, negotiate.MustCompose(false, rep), Options{})
		if out != nil {
			t.Errorf("%s: got response %v", rep, out)
		}
		var be *BackendError
		if !errors.As(err, &be) {
			t.Fatalf("%s: err = %v, want *BackendError", rep, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("%s: cause not preserved: %v", rep, err)
		}
		if be.View != "default.html" {
			t.Errorf("%s: view = %q", rep, be.View)
		}
	}
}

func TestRender_TemplateFailureIsBackendError(t *testing.T) {
	views := newFakeViews("default.html")
	views.err = errors.New("template exploded")
	r := New(views)

	_, err := r.Render(context.Background(), &view.Result{Data: sample()}, negotiate.MustCompose(false, negotiate.Markdown), Options{})
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "templates" {
		t.Fatalf("err = %v", err)
	}
}

func TestRender_UnconfiguredBackends(t *testing.T) {
	r := New(newFakeViews("default.html"))
	for _, rep := range []negotiate.Representation{negotiate.Image, negotiate.Document} {
		_, err := r.Render(context.Background(), &view.Result{Data: sample()}, negotiate.MustCompose(false, rep), Options{})
		if !errors.Is(err, ErrBackendUnavailable) {
			t.Errorf("%s: err = %v", rep, err)
		}
	}
}

func TestRender_InvalidPDFAndScale(t *testing.T) {
	fb := &fakeBrowser{pdf: []byte("not a pdf")}
	r := New(newFakeViews("default.html"), WithPrinter(fb))

	_, err := r.Render(context.Background(), &view.Result{Data: sample()}, negotiate.MustCompose(false, negotiate.Document), Options{Scale: 5})
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "pdf" {
		t.Fatalf("err = %v", err)
	}
	if fb.scale != DefaultScale {
		t.Errorf("out-of-range scale passed through: %v", fb.scale)
	}
}

func TestRender_ImageSuccess(t *testing.T) {
	fb := &fakeBrowser{png: []byte("\x89PNG")}
	r := New(newFakeViews("default.html"), WithRasterizer(fb))

	out, err := r.Render(context.Background(), &view.Result{Data: sample()}, negotiate.MustCompose(false, negotiate.Image), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.MediaType != "image/png" || string(out.Body) != "\x89PNG" {
		t.Errorf("got %q %q", out.MediaType, out.Body)
	}
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(newFakeViews("default.html"), WithRasterizer(&fakeBrowser{png: []byte("png")}))

	for _, rep := range []negotiate.Representation{negotiate.Structured, negotiate.Image} {
		out, err := r.Render(ctx, &view.Result{Data: sample()}, negotiate.MustCompose(false, rep), Options{})
		if out != nil || !errors.Is(err, context.Canceled) {
			t.Errorf("%s: out=%v err=%v", rep, out, err)
		}
	}
}

func TestRender_ZeroPreference(t *testing.T) {
	var ce *negotiate.ConstructionError
	_, err := New(nil).Render(context.Background(), &view.Result{}, negotiate.Preference{}, Options{})
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
}

func TestRender_MarkdownAndRichText(t *testing.T) {
	tmpl, err := NewTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	r := New(tmpl)
	res := view.OK("another_example.html", view.Object{
		{Key: "title", Value: "Another Example"},
		{Key: "message", Value: "Your cart"},
		{Key: "items", Value: []any{"apple", "banana"}},
	})

	md, err := r.Render(context.Background(), res, negotiate.MustCompose(false, negotiate.Markdown), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# Another Example", "- apple", "- banana"} {
		if !strings.Contains(string(md.Body), want) {
			t.Errorf("markdown missing %q:\n%s", want, md.Body)
		}
	}
	if strings.Contains(string(md.Body), "font-family") {
		t.Errorf("style content leaked into markdown:\n%s", md.Body)
	}

	rich, err := r.Render(context.Background(), res, negotiate.MustCompose(false, negotiate.RichText), Options{})
	if err != nil {
		t.Fatal(err)
	}
	body := string(rich.Body)
	if !strings.Contains(body, "Another Example") || !strings.Contains(body, "╭") {
		t.Errorf("rich text panel:\n%s", body)
	}
	if rich.MediaType != "text/plain; charset=utf-8" {
		t.Errorf("media type = %q", rich.MediaType)
	}
}

func TestMarkdownConverter_StripsScripts(t *testing.T) {
	c := NewMarkdownConverter()
	txt, err := c.Convert(context.Background(), []byte(
		`<html><head><title> Hello </title></head><body><h2>Hi</h2><script>alert(1)</script><p onclick="x()">text</p></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if txt.Title != "Hello" {
		t.Errorf("title = %q", txt.Title)
	}
	if strings.Contains(txt.Markdown, "alert") || !strings.Contains(txt.Markdown, "## Hi") {
		t.Errorf("markdown = %q", txt.Markdown)
	}
}

func TestConsole_DefaultTitle(t *testing.T) {
	out, err := NewConsole(ConsoleConfig{}).Panel(context.Background(), "", "plain *text*")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, DefaultPanelTitle) {
		t.Errorf("panel = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colorless console emitted ANSI codes: %q", out)
	}
}

func TestConsole_RendererErrorSurfaces(t *testing.T) {
	c := NewConsole(ConsoleConfig{})
	c.mdOpts = append(c.mdOpts, glamour.WithStylePath("/nonexistent/style.json"))
	if _, err := c.Panel(context.Background(), "t", "x"); err == nil {
		t.Error("expected markdown renderer error")
	}
}

func TestConsole_ConcurrentPanels(t *testing.T) {
	// WHAT: Panels rendered from many goroutines each carry their own body.
	// WHY: One Console serves every RichText request; run with -race.
	c := NewConsole(ConsoleConfig{Color: true})
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			marker := fmt.Sprintf("marker%03d", i)
			out, err := c.Panel(context.Background(), "t", "# "+marker+"\n\n- item\n")
			if err != nil {
				errs <- err
				return
			}
			if !strings.Contains(out, marker) {
				errs <- fmt.Errorf("panel %d lost its body: %q", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestTemplates_BuiltinViews(t *testing.T) {
	tmpl, err := NewTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"default.html", "partial_default.html", "404.html", "example.html", "partial_example.html", "sitemap.html", "status.html"} {
		if !tmpl.Lookup(name) {
			t.Errorf("missing view %s", name)
		}
	}
	b, err := tmpl.Execute(context.Background(), "example.html", Page{Data: map[string]any{
		"message": "Hello", "data": []any{float64(1), float64(2)},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "<li>1</li>") || !strings.Contains(string(b), "<p>Hello</p>") {
		t.Errorf("example.html:\n%s", b)
	}
	if _, err := tmpl.Execute(context.Background(), "nope.html", nil); !errors.Is(err, ErrViewNotFound) {
		t.Errorf("unknown view err = %v", err)
	}
}

func TestTemplates_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/status.html", `<p>custom {{.Data.status}}</p>`)

	tmpl, err := NewTemplates(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := tmpl.Execute(context.Background(), "status.html", Page{Data: map[string]any{"status": "ok"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "<p>custom ok</p>" {
		t.Errorf("got %q", b)
	}
}

func TestClampScale(t *testing.T) {
	for in, want := range map[float64]float64{0.5: 0.5, 2: 2, 0.05: 1, 3: 1, -1: 1} {
		if got := ClampScale(in); got != want {
			t.Errorf("ClampScale(%v) = %v, want %v", in, got, want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
