package negotiate

import "strings"

// formats maps recognised format tokens and aliases to a tag.
var formats = map[string]Representation{
	"application/json":      Structured,
	"json":                  Structured,
	"text/html":             Markup,
	"html":                  Markup,
	"application/xhtml+xml": Markup,
	"text/html-partial":     MarkupFragment,
	"html-partial":          MarkupFragment,
	"partial":               MarkupFragment,
	"text/markdown":         Markdown,
	"text/x-markdown":       Markdown,
	"markdown":              Markdown,
	"md":                    Markdown,
	"text/plain":            PlainText,
	"text":                  PlainText,
	"plain":                 PlainText,
	"txt":                   PlainText,
	"text/rich":             RichText,
	"text/rtf":              RichText,
	"application/rtf":       RichText,
	"rich":                  RichText,
	"rtf":                   RichText,
	"image/png":             Image,
	"png":                   Image,
	"application/pdf":       Document,
	"pdf":                   Document,
}

// fragmentMarker in a format token asks for the partial variant.
const fragmentMarker = "partial"

var (
	browserAgents = []string{"mozilla", "chrome", "safari", "firefox", "edge", "wget", "opera"}
	cliAgents     = []string{"curl", "httpie", "httpx"}
	docsReferers  = []string{"/docs", "/redoc"}
)

// Resolve turns the request signals into exactly one Preference. It never
// fails: unknown input degrades to Structured.
//
// Precedence: partial-page marker, explicit override, Accept header,
// interactive docs referer, browser user agent, CLI user agent, default.
func Resolve(s Signals) Preference {
	if s.Fragment {
		return MustCompose(true, Markup)
	}

	token := normalizeToken(s.Override)
	if token == "" {
		token = normalizeToken(s.Accept)
	}

	if token == "" {
		switch {
		case containsAny(s.Referer, docsReferers):
			return MustCompose(false, Structured)
		case containsAny(strings.ToLower(s.UserAgent), browserAgents):
			return MustCompose(false, Markup)
		case containsAny(strings.ToLower(s.UserAgent), cliAgents):
			return MustCompose(false, RichText)
		default:
			return MustCompose(false, Structured)
		}
	}

	rep, ok := formats[token]
	if !ok {
		rep = Structured
	}
	return MustCompose(strings.Contains(token, fragmentMarker), rep)
}

// Lookup maps a single format token to its tag.
func Lookup(token string) (Representation, bool) {
	rep, ok := formats[normalizeToken(token)]
	return rep, ok
}

// normalizeToken lower-cases v, keeps the first entry of a comma list and
// drops media-type parameters. Wildcards normalise to "".
func normalizeToken(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSpace(v)
	if v == "*/*" || v == "*" {
		return ""
	}
	return v
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
