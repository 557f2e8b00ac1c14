package negotiate

import (
	"errors"
	"net/http/httptest"
	"testing"
)

const (
	firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	curlUA    = "curl/8.5.0"
)

func TestResolve_Precedence(t *testing.T) {
	cases := []struct {
		name    string
		sig     Signals
		want    Representation
		partial bool
	}{
		{"default", Signals{}, Structured, false},
		{"browser ua", Signals{UserAgent: firefoxUA}, Markup, false},
		{"cli ua", Signals{UserAgent: curlUA}, RichText, false},
		{"httpie ua", Signals{UserAgent: "HTTPie/3.2.2"}, RichText, false},
		{"unknown ua", Signals{UserAgent: "python-requests/2.31"}, Structured, false},
		{"docs referer beats browser", Signals{UserAgent: firefoxUA, Referer: "http://localhost:8000/docs"}, Structured, false},
		{"redoc referer", Signals{UserAgent: curlUA, Referer: "http://x/redoc#op"}, Structured, false},
		{"accept beats ua", Signals{UserAgent: firefoxUA, Accept: "application/json"}, Structured, false},
		{"override beats accept", Signals{Override: "text/plain", Accept: "text/html"}, PlainText, false},
		{"wildcard override falls to accept", Signals{Override: "*/*", Accept: "application/pdf"}, Document, false},
		{"wildcard accept falls to ua", Signals{Accept: "*/*", UserAgent: curlUA}, RichText, false},
		{"first of comma list", Signals{Accept: "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"}, Markup, false},
		{"parameters dropped", Signals{Accept: "text/plain; charset=utf-8"}, PlainText, false},
		{"case insensitive", Signals{Override: "IMAGE/PNG"}, Image, false},
		{"markdown alias", Signals{Override: "md"}, Markdown, false},
		{"rtf alias", Signals{Override: "application/rtf"}, RichText, false},
		{"html partial token", Signals{Override: "text/html-partial"}, MarkupFragment, true},
		{"unknown token", Signals{Override: "application/x-nope", UserAgent: firefoxUA}, Structured, false},
		{"unknown token with marker", Signals{Override: "text/csv-partial"}, Structured, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Resolve(tc.sig)
			if p.Representation() != tc.want {
				t.Errorf("representation: got %s, want %s", p.Representation(), tc.want)
			}
			if p.Partial() != tc.partial {
				t.Errorf("partial: got %v, want %v", p.Partial(), tc.partial)
			}
		})
	}
}

func TestResolve_FragmentAlwaysMarkup(t *testing.T) {
	// WHAT: The partial-page marker wins over every other signal.
	// WHY: htmx swaps expect an HTML fragment whatever the Accept header says.
	for _, sig := range []Signals{
		{Fragment: true},
		{Fragment: true, Override: "application/pdf"},
		{Fragment: true, Accept: "application/json", UserAgent: curlUA},
		{Fragment: true, Referer: "/docs"},
	} {
		p := Resolve(sig)
		if p.Representation() != Markup || !p.Partial() {
			t.Errorf("Resolve(%+v) = %s, want markup+partial", sig, p)
		}
	}
}

func TestResolve_AlwaysOneTag(t *testing.T) {
	// WHAT: Every combination of signals yields a valid single-tag preference.
	tokens := []string{"", "*/*", "application/json", "text/html", "text/html-partial", "md", "text/plain",
		"text/rich", "image/png", "application/pdf", "garbage", "a,b", ";"}
	agents := []string{"", firefoxUA, curlUA, "bot"}
	referers := []string{"", "/docs", "https://example.com/page"}
	for _, o := range tokens {
		for _, a := range tokens {
			for _, ua := range agents {
				for _, ref := range referers {
					for _, frag := range []bool{false, true} {
						p := Resolve(Signals{Override: o, Accept: a, UserAgent: ua, Referer: ref, Fragment: frag})
						if !p.Representation().Valid() || p.IsZero() {
							t.Fatalf("invalid preference for %q/%q/%q/%q/%v", o, a, ua, ref, frag)
						}
					}
				}
			}
		}
	}
}

func TestCompose_Invariant(t *testing.T) {
	var ce *ConstructionError

	if _, err := Compose(false); !errors.As(err, &ce) {
		t.Errorf("no tags: got %v, want ConstructionError", err)
	}
	if _, err := Compose(false, Markup, Image); !errors.As(err, &ce) {
		t.Errorf("two tags: got %v, want ConstructionError", err)
	}
	if _, err := Compose(false, Representation(0)); !errors.As(err, &ce) {
		t.Errorf("zero tag: got %v, want ConstructionError", err)
	}
	p, err := Compose(false, Markdown, Markdown)
	if err != nil {
		t.Fatalf("duplicate of one tag: %v", err)
	}
	if p.Representation() != Markdown {
		t.Errorf("got %s", p)
	}
	p, err = Compose(false, MarkupFragment)
	if err != nil || !p.Partial() {
		t.Errorf("fragment tag implies partial: %v %v", p, err)
	}
}

func TestMustCompose_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustCompose(false)
}

func TestExtract(t *testing.T) {
	r := httptest.NewRequest("GET", "/example?content_type=text/plain", nil)
	r.Header.Set("Accept", "text/html")
	r.Header.Set("User-Agent", curlUA)
	r.Header.Set("Referer", "http://localhost/docs")
	r.Header.Set("HX-Request", "true")

	s := Extract(r)
	if s.Override != "text/plain" || s.Accept != "text/html" || s.UserAgent != curlUA ||
		s.Referer != "http://localhost/docs" || !s.Fragment {
		t.Errorf("unexpected signals: %+v", s)
	}

	r = httptest.NewRequest("POST", "/message", nil)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "text/html")
	if s := Extract(r); s.Accept != "application/json" {
		t.Errorf("content-type should win over accept, got %q", s.Accept)
	}
}

func TestRepresentation_MediaType(t *testing.T) {
	for _, r := range Representations() {
		if r.MediaType() == "application/octet-stream" {
			t.Errorf("%s has no media type", r)
		}
	}
}
