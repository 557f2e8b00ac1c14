package negotiate

import (
	"net/http"
	"strings"
)

const (
	// OverrideParam is the query parameter that forces a format.
	OverrideParam = "content_type"

	// FragmentHeader marks partial-page (htmx) requests.
	FragmentHeader = "HX-Request"
)

// VaryHeaders lists the request headers a negotiated response depends on.
var VaryHeaders = []string{"Accept", "Content-Type", "User-Agent", "Referer", FragmentHeader}

// Signals is the immutable snapshot of everything Resolve looks at.
type Signals struct {
	// Override is the explicit format token (query parameter). May be empty.
	Override string
	// Accept is the Content-Type header when set, else the Accept header.
	Accept    string
	UserAgent string
	Referer   string
	// Fragment is true for partial-page requests.
	Fragment bool
}

// Extract reads the negotiation signals from r.
func Extract(r *http.Request) Signals {
	accept := r.Header.Get("Content-Type")
	if accept == "" {
		accept = r.Header.Get("Accept")
	}
	return Signals{
		Override:  r.URL.Query().Get(OverrideParam),
		Accept:    accept,
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   r.Header.Get("Referer"),
		Fragment:  strings.EqualFold(strings.TrimSpace(r.Header.Get(FragmentHeader)), "true"),
	}
}
