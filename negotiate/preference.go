// Package negotiate derives a single output representation from the
// conflicting signals carried by a request (format override, Accept header,
// user agent, referer, partial-page marker).
package negotiate

import (
	"fmt"
	"strings"
)

// Representation is the output format tag. The zero value is not a valid
// representation.
type Representation int

const (
	Structured Representation = iota + 1
	Markup
	MarkupFragment
	PlainText
	RichText
	Markdown
	Image
	Document
)

var representationNames = map[Representation]string{
	Structured:     "structured",
	Markup:         "markup",
	MarkupFragment: "markup_fragment",
	PlainText:      "plain_text",
	RichText:       "rich_text",
	Markdown:       "markdown",
	Image:          "image",
	Document:       "document",
}

// Representations lists every valid tag in declaration order.
func Representations() []Representation {
	return []Representation{Structured, Markup, MarkupFragment, PlainText, RichText, Markdown, Image, Document}
}

// Valid reports whether r is one of the declared tags.
func (r Representation) Valid() bool {
	_, ok := representationNames[r]
	return ok
}

func (r Representation) String() string {
	if n, ok := representationNames[r]; ok {
		return n
	}
	return fmt.Sprintf("representation(%d)", int(r))
}

// MediaType is the content type sent for the representation.
func (r Representation) MediaType() string {
	switch r {
	case Structured:
		return "application/json"
	case Markup, MarkupFragment:
		return "text/html; charset=utf-8"
	case PlainText, RichText, Markdown:
		return "text/plain; charset=utf-8"
	case Image:
		return "image/png"
	case Document:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ConstructionError reports an attempt to build a Preference with zero or
// several active representation tags.
type ConstructionError struct {
	Tags []Representation
}

func (e *ConstructionError) Error() string {
	if len(e.Tags) == 0 {
		return "negotiate: preference needs exactly one representation, got none"
	}
	names := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		names[i] = t.String()
	}
	return fmt.Sprintf("negotiate: preference needs exactly one representation, got [%s]", strings.Join(names, ", "))
}

// Preference is the resolved output choice for one request: exactly one
// representation tag plus the orthogonal partial (fragment) modifier.
// Build it with Compose; the zero value is invalid.
type Preference struct {
	rep     Representation
	partial bool
}

// Compose builds a Preference from the active tags. Exactly one distinct,
// valid tag must be given.
func Compose(partial bool, tags ...Representation) (Preference, error) {
	var active []Representation
	for _, t := range tags {
		if !t.Valid() {
			return Preference{}, &ConstructionError{Tags: tags}
		}
		dup := false
		for _, a := range active {
			if a == t {
				dup = true
				break
			}
		}
		if !dup {
			active = append(active, t)
		}
	}
	if len(active) != 1 {
		return Preference{}, &ConstructionError{Tags: active}
	}
	if active[0] == MarkupFragment {
		partial = true
	}
	return Preference{rep: active[0], partial: partial}, nil
}

// MustCompose is Compose for callers whose tag choice cannot be invalid.
// A failure is a programming defect and panics.
func MustCompose(partial bool, tags ...Representation) Preference {
	p, err := Compose(partial, tags...)
	if err != nil {
		panic(err)
	}
	return p
}

// Representation returns the active tag.
func (p Preference) Representation() Representation { return p.rep }

// Partial reports whether the fragment variant of the view is wanted.
func (p Preference) Partial() bool { return p.partial }

// IsZero reports whether p was never composed.
func (p Preference) IsZero() bool { return p.rep == 0 }

func (p Preference) String() string {
	if p.partial && p.rep != MarkupFragment {
		return p.rep.String() + "+partial"
	}
	return p.rep.String()
}
