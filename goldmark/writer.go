package goldmark

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// writer walks one parsed document and accumulates the styled output.
type writer struct {
	styles styles
	src    []byte
	out    strings.Builder
}

// blocks renders the children of parent separated by blank lines.
func (w *writer) blocks(parent ast.Node, width int) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c, width)
		if c.NextSibling() != nil {
			w.out.WriteString("\n")
		}
	}
}

func (w *writer) block(node ast.Node, width int) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		w.line(wrap(w.inline(n), width))

	case *ast.Heading:
		title := w.inline(n)
		if n.Level > 2 {
			title = strings.Repeat("#", n.Level) + " " + title
		}
		w.line(wrap(w.styles.heading.Render(title), width))

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(w.src)); lang != "" {
			w.line(w.styles.muted.Render(lang))
		}
		w.code(n.Lines())

	case *ast.CodeBlock:
		w.code(n.Lines())

	case *ast.Blockquote:
		inner := &writer{styles: w.styles, src: w.src}
		inner.blocks(n, max(width-2, 10))
		bar := w.styles.muted.Render("▎") + " "
		for _, l := range strings.Split(strings.TrimRight(inner.out.String(), "\n"), "\n") {
			w.line(bar + w.styles.quote.Render(l))
		}

	case *ast.List:
		w.list(n, width, 0)

	case *ast.ThematicBreak:
		w.line(w.styles.muted.Render(strings.Repeat("─", min(width, 40))))

	case *ast.HTMLBlock:
		w.raw(n.Lines())

	case *east.Table:
		w.table(n)

	default:
		w.blocks(node, width)
	}
}

func (w *writer) line(s string) {
	w.out.WriteString(s)
	w.out.WriteString("\n")
}

// code writes lines verbatim behind a gutter. Code is never reflowed.
func (w *writer) code(lines *text.Segments) {
	gutter := w.styles.muted.Render("│") + " "
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		w.line(gutter + strings.TrimRight(string(seg.Value(w.src)), "\n"))
	}
}

func (w *writer) raw(lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		w.line(strings.TrimRight(string(seg.Value(w.src)), "\n"))
	}
}

func (w *writer) list(l *ast.List, width, depth int) {
	n := l.Start
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "• "
		if depth%2 == 1 {
			marker = "◦ "
		}
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", n)
			n++
		}
		indent := strings.Repeat("  ", depth)

		var body []string
		flush := func() {
			if len(body) == 0 {
				return
			}
			w.item(indent, marker, strings.Join(body, "\n"), width)
			body = nil
			marker = strings.Repeat(" ", lipgloss.Width(marker))
		}
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				body = append(body, w.inline(in))
			case *ast.List:
				flush()
				w.list(in, width, depth+1)
			default:
				inner := &writer{styles: w.styles, src: w.src}
				inner.block(in, width-len(indent)-lipgloss.Width(marker))
				body = append(body, strings.TrimRight(inner.out.String(), "\n"))
			}
		}
		flush()
	}
}

// item writes one list entry, indenting continuation lines under the text.
func (w *writer) item(indent, marker, content string, width int) {
	prefix := indent + marker
	pw := lipgloss.Width(prefix)
	lines := strings.Split(wrap(content, max(width-pw, 10)), "\n")
	for i, l := range lines {
		if i == 0 {
			w.line(prefix + l)
			continue
		}
		w.line(strings.Repeat(" ", pw) + l)
	}
}

// inline renders the inline children of node to a single styled string.
func (w *writer) inline(node ast.Node) string {
	var b strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.inlineNode(c, &b)
	}
	return b.String()
}

func (w *writer) inlineNode(node ast.Node, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.src))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}

	case *ast.String:
		b.Write(n.Value)

	case *ast.Emphasis:
		if n.Level == 1 {
			b.WriteString(w.styles.italic.Render(w.inline(n)))
		} else {
			b.WriteString(w.styles.bold.Render(w.inline(n)))
		}

	case *ast.CodeSpan:
		b.WriteString(w.styles.code.Render(w.inline(n)))

	case *ast.Link:
		label := w.inline(n)
		dest := string(n.Destination)
		b.WriteString(w.styles.link.Render(label))
		if dest != "" && dest != label {
			b.WriteString(" " + w.styles.muted.Render("("+dest+")"))
		}

	case *ast.AutoLink:
		b.WriteString(w.styles.link.Render(string(n.URL(w.src))))

	case *ast.Image:
		b.WriteString(w.styles.muted.Render("[image: " + w.inline(n) + "]"))
		b.WriteString(" " + w.styles.muted.Render("("+string(n.Destination)+")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.src))
		}

	case *east.Strikethrough:
		b.WriteString(w.styles.strike.Render(w.inline(n)))

	case *east.TaskCheckBox:
		if n.IsChecked {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			w.inlineNode(c, b)
		}
	}
}

// wrap word-wraps s to width and drops the padding lipgloss adds to
// shorter lines.
func wrap(s string, width int) string {
	wrapped := lipgloss.NewStyle().Width(width).Render(s)
	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}
