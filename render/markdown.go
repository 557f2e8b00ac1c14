package render

import (
	"bytes"
	"context"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkdownConverter turns rendered markup into Markdown. The markup is
// sanitized first so scripts, styles and event handlers never reach the
// text output.
type MarkdownConverter struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewMarkdownConverter returns a converter with CommonMark, table and
// strikethrough support.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
				strikethrough.NewStrikethroughPlugin(),
			),
		),
	}
}

// Convert implements TextConverter.
func (m *MarkdownConverter) Convert(ctx context.Context, markup []byte) (Text, error) {
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}
	raw, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return Text{}, err
	}
	title := documentTitle(raw)

	doc, err := html.Parse(bytes.NewReader(m.policy.SanitizeBytes(markup)))
	if err != nil {
		return Text{}, err
	}
	md, err := m.conv.ConvertNode(doc, converter.WithContext(ctx))
	if err != nil {
		return Text{}, err
	}
	return Text{Markdown: strings.TrimSpace(string(md)), Title: title}, nil
}

func documentTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := documentTitle(c); t != "" {
			return t
		}
	}
	return ""
}
