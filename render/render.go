// Package render turns a handler's canonical result into the bytes of one
// output representation. Each representation is a transform in a dispatch
// table; markup-derived transforms call out to fallible backends (templates,
// markup-to-Markdown, styled console, headless browser).
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hazyhaar/dynresp/negotiate"
	"github.com/hazyhaar/dynresp/view"
)

// Response is the final output handed to the transport.
type Response struct {
	Body      []byte
	MediaType string
	Status    int
	Header    http.Header
}

// Views renders named templates to markup.
type Views interface {
	Lookup(name string) bool
	Execute(ctx context.Context, name string, data any) ([]byte, error)
}

// TextConverter converts markup to Markdown.
type TextConverter interface {
	Convert(ctx context.Context, markup []byte) (Text, error)
}

// Text is Markdown produced from markup, with the document title if any.
type Text struct {
	Markdown string
	Title    string
}

// Styler wraps Markdown in a decorated terminal panel.
type Styler interface {
	Panel(ctx context.Context, title, markdown string) (string, error)
}

// Rasterizer renders markup to a PNG image.
type Rasterizer interface {
	Screenshot(ctx context.Context, markup []byte) ([]byte, error)
}

// Printer renders markup to a paginated PDF document.
type Printer interface {
	PDF(ctx context.Context, markup []byte, scale float64) ([]byte, error)
}

// Options carries per-request render inputs beyond the result itself.
type Options struct {
	// Path and Query are exposed to templates.
	Path  string
	Query url.Values
	// Scale is the document scale factor. Zero means 1.0.
	Scale float64
}

// Page is the data context bound to every template.
type Page struct {
	// Data is the structured value as plain maps and slices.
	Data           any
	View           string
	Path           string
	Query          url.Values
	Partial        bool
	Representation string
}

type job struct {
	result  *view.Result
	pref    negotiate.Preference
	opts    Options
	viewKey string
}

type transform func(ctx context.Context, j *job) (*Response, error)

// Renderer dispatches on the preference's representation tag.
type Renderer struct {
	views   Views
	text    TextConverter
	styler  Styler
	raster  Rasterizer
	printer Printer
	logger  *slog.Logger

	transforms map[negotiate.Representation]transform
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTextConverter replaces the default Markdown converter.
func WithTextConverter(c TextConverter) Option { return func(r *Renderer) { r.text = c } }

// WithStyler replaces the default console styler.
func WithStyler(s Styler) Option { return func(r *Renderer) { r.styler = s } }

// WithRasterizer enables the Image representation.
func WithRasterizer(b Rasterizer) Option { return func(r *Renderer) { r.raster = b } }

// WithPrinter enables the Document representation.
func WithPrinter(b Printer) Option { return func(r *Renderer) { r.printer = b } }

// WithLogger sets the logger used for backend diagnostics.
func WithLogger(l *slog.Logger) Option { return func(r *Renderer) { r.logger = l } }

// New creates a Renderer over the given view set. Image and Document stay
// unavailable until a rasterizer and printer are configured.
func New(views Views, opts ...Option) *Renderer {
	r := &Renderer{
		views:  views,
		text:   NewMarkdownConverter(),
		styler: NewConsole(ConsoleConfig{}),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.transforms = map[negotiate.Representation]transform{
		negotiate.Structured:     r.structured,
		negotiate.Markup:         r.markupResponse,
		negotiate.MarkupFragment: r.markupResponse,
		negotiate.PlainText:      r.plainText,
		negotiate.Markdown:       r.markdown,
		negotiate.RichText:       r.richText,
		negotiate.Image:          r.image,
		negotiate.Document:       r.document,
	}
	return r
}

// Render produces the response for res under pref. Backend failures come
// back as *BackendError; a cancelled ctx returns ctx.Err() and no bytes.
func (r *Renderer) Render(ctx context.Context, res *view.Result, pref negotiate.Preference, opts Options) (*Response, error) {
	if pref.IsZero() {
		return nil, &negotiate.ConstructionError{}
	}
	t, ok := r.transforms[pref.Representation()]
	if !ok {
		return nil, fmt.Errorf("render: no transform for %s", pref.Representation())
	}

	j := &job{result: res, pref: pref, opts: opts}
	j.viewKey = r.viewName(res, pref)

	out, err := t(ctx, j)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Status = res.StatusCode()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	for k, vs := range res.Header {
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}
	out.Header.Set("X-Representation", pref.Representation().String())
	return out, nil
}

// viewName applies the fragment naming convention. A missing fragment view
// falls back to the full view.
func (r *Renderer) viewName(res *view.Result, pref negotiate.Preference) string {
	name := res.Name()
	if !pref.Partial() {
		return name
	}
	if frag := view.FragmentName(name); r.views != nil && r.views.Lookup(frag) {
		return frag
	}
	return name
}

func (r *Renderer) structured(_ context.Context, j *job) (*Response, error) {
	b, err := json.Marshal(j.result.Data)
	if err != nil {
		return nil, &BackendError{Backend: "json", Err: err}
	}
	return &Response{Body: b, MediaType: negotiate.Structured.MediaType()}, nil
}

func (r *Renderer) markup(ctx context.Context, j *job) ([]byte, error) {
	if r.views == nil {
		return nil, &BackendError{Backend: "templates", View: j.viewKey, Err: ErrBackendUnavailable}
	}
	page := Page{
		Data:           view.Plain(j.result.Data),
		View:           j.viewKey,
		Path:           j.opts.Path,
		Query:          j.opts.Query,
		Partial:        j.pref.Partial(),
		Representation: j.pref.Representation().String(),
	}
	b, err := r.views.Execute(ctx, j.viewKey, page)
	if err != nil {
		return nil, wrapBackend(ctx, "templates", j.viewKey, err)
	}
	return b, nil
}

func (r *Renderer) markupResponse(ctx context.Context, j *job) (*Response, error) {
	b, err := r.markup(ctx, j)
	if err != nil {
		return nil, err
	}
	return &Response{Body: b, MediaType: negotiate.Markup.MediaType()}, nil
}

func (r *Renderer) plainText(_ context.Context, j *job) (*Response, error) {
	return &Response{Body: []byte(FlattenText(j.result.Data)), MediaType: negotiate.PlainText.MediaType()}, nil
}

func (r *Renderer) toText(ctx context.Context, j *job) (Text, error) {
	b, err := r.markup(ctx, j)
	if err != nil {
		return Text{}, err
	}
	if r.text == nil {
		return Text{}, &BackendError{Backend: "markdown", View: j.viewKey, Err: ErrBackendUnavailable}
	}
	txt, err := r.text.Convert(ctx, b)
	if err != nil {
		return Text{}, wrapBackend(ctx, "markdown", j.viewKey, err)
	}
	return txt, nil
}

func (r *Renderer) markdown(ctx context.Context, j *job) (*Response, error) {
	txt, err := r.toText(ctx, j)
	if err != nil {
		return nil, err
	}
	return &Response{Body: []byte(txt.Markdown + "\n"), MediaType: negotiate.Markdown.MediaType()}, nil
}

func (r *Renderer) richText(ctx context.Context, j *job) (*Response, error) {
	txt, err := r.toText(ctx, j)
	if err != nil {
		return nil, err
	}
	if r.styler == nil {
		return nil, &BackendError{Backend: "console", View: j.viewKey, Err: ErrBackendUnavailable}
	}
	out, err := r.styler.Panel(ctx, txt.Title, txt.Markdown)
	if err != nil {
		return nil, wrapBackend(ctx, "console", j.viewKey, err)
	}
	return &Response{Body: []byte(out), MediaType: negotiate.RichText.MediaType()}, nil
}

func (r *Renderer) image(ctx context.Context, j *job) (*Response, error) {
	if r.raster == nil {
		return nil, &BackendError{Backend: "rasterizer", View: j.viewKey, Err: ErrBackendUnavailable}
	}
	b, err := r.markup(ctx, j)
	if err != nil {
		return nil, err
	}
	png, err := r.raster.Screenshot(ctx, b)
	if err != nil {
		return nil, wrapBackend(ctx, "rasterizer", j.viewKey, err)
	}
	return &Response{Body: png, MediaType: negotiate.Image.MediaType()}, nil
}

func (r *Renderer) document(ctx context.Context, j *job) (*Response, error) {
	if r.printer == nil {
		return nil, &BackendError{Backend: "printer", View: j.viewKey, Err: ErrBackendUnavailable}
	}
	b, err := r.markup(ctx, j)
	if err != nil {
		return nil, err
	}
	scale := DefaultScale
	if j.opts.Scale != 0 {
		scale = ClampScale(j.opts.Scale)
	}
	pdf, err := r.printer.PDF(ctx, b, scale)
	if err != nil {
		return nil, wrapBackend(ctx, "printer", j.viewKey, err)
	}
	pages, err := inspectPDF(pdf)
	if err != nil {
		return nil, &BackendError{Backend: "pdf", View: j.viewKey, Err: err}
	}
	h := make(http.Header)
	h.Set("X-Page-Count", strconv.Itoa(pages))
	r.logger.DebugContext(ctx, "render: document", "view", j.viewKey, "pages", pages, "bytes", len(pdf), "scale", scale)
	return &Response{Body: pdf, MediaType: negotiate.Document.MediaType(), Header: h}, nil
}

// wrapBackend returns ctx.Err() when the request itself is gone so callers
// can tell a cancelled request from a failed or timed-out backend.
func wrapBackend(ctx context.Context, backend, viewName string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	return &BackendError{Backend: backend, View: viewName, Err: err}
}
