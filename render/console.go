package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// DefaultPanelTitle is used when the rendered page has no <title>.
const DefaultPanelTitle = "Response Data"

// ConsoleConfig controls the rich-text panel.
type ConsoleConfig struct {
	// Width is the word-wrap column. Default 80.
	Width int
	// Color enables ANSI colors. Off means plain ASCII output.
	Color bool
}

func (c *ConsoleConfig) defaults() {
	if c.Width <= 0 {
		c.Width = 80
	}
}

// Console renders Markdown for a terminal and frames it in a rounded,
// cyan-bordered panel with a bold title. It is safe for concurrent use:
// glamour renderers keep per-render state, so each Panel builds its own.
type Console struct {
	cfg     ConsoleConfig
	mdOpts  []glamour.TermRendererOption
	style   lipgloss.Style
	heading lipgloss.Style
}

// NewConsole builds a Console.
func NewConsole(cfg ConsoleConfig) *Console {
	cfg.defaults()

	profile, glamourStyle := termenv.Ascii, "notty"
	if cfg.Color {
		profile, glamourStyle = termenv.ANSI256, "dark"
	}

	lr := lipgloss.NewRenderer(io.Discard)
	lr.SetColorProfile(profile)
	cyan := lipgloss.Color("6")

	return &Console{
		cfg: cfg,
		mdOpts: []glamour.TermRendererOption{
			glamour.WithStandardStyle(glamourStyle),
			glamour.WithColorProfile(profile),
			glamour.WithWordWrap(cfg.Width - 4),
		},
		style: lr.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(0, 1),
		heading: lr.NewStyle().Bold(true).Foreground(cyan),
	}
}

// Panel implements Styler.
func (c *Console) Panel(ctx context.Context, title, markdown string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if title == "" {
		title = DefaultPanelTitle
	}
	md, err := glamour.NewTermRenderer(c.mdOpts...)
	if err != nil {
		return "", fmt.Errorf("console: markdown renderer: %w", err)
	}
	out, err := md.Render(markdown)
	if err != nil {
		return "", err
	}
	body := strings.Trim(out, "\n")
	panel := c.style.Render(lipgloss.JoinVertical(lipgloss.Left, c.heading.Render(title), "", body))
	return panel + "\n", nil
}
