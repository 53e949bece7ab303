// Package goldmark renders assistant replies, which are markdown, to
// ANSI-styled terminal output. Parsing is done by goldmark with the GitHub
// flavored extensions; styling by lipgloss.
package goldmark

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ndchat"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const defaultWidth = 80

// Renderer converts markdown to styled terminal text. It is safe for
// concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	styles styles
}

// New creates a Renderer using the colors of theme.
func New(theme ndchat.Theme) *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		styles: newStyles(theme),
	}
}

// Render parses source and returns it styled and wrapped to width.
// Paragraphs, quotes and list items are word-wrapped. Code blocks and tables
// keep their layout.
func (r *Renderer) Render(source string, width int) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	src := []byte(source)
	doc := r.md.Parser().Parse(text.NewReader(src))

	w := &writer{styles: r.styles, src: src}
	w.blocks(doc, width)
	return strings.TrimRight(w.out.String(), "\n")
}

// Render is a convenience wrapper that builds a Renderer for a single call.
func Render(source string, width int, theme ndchat.Theme) string {
	return New(theme).Render(source, width)
}

type styles struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	heading   lipgloss.Style
	muted     lipgloss.Style
	code      lipgloss.Style
	link      lipgloss.Style
	quote     lipgloss.Style
	tableHead lipgloss.Style
}

func newStyles(t ndchat.Theme) styles {
	return styles{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		heading:   lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		code:      lipgloss.NewStyle().Foreground(ansiColor(t.Status)),
		link:      lipgloss.NewStyle().Underline(true),
		quote:     lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Italic(true),
		tableHead: lipgloss.NewStyle().Bold(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
