package goldmark

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	east "github.com/yuin/goldmark/extension/ast"
)

// table writes a GFM table with columns sized to their widest cell.
// Widths are measured in terminal cells so CJK text lines up.
func (w *writer) table(t *east.Table) {
	var rows [][]string
	header := -1
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		if _, ok := r.(*east.TableHeader); ok {
			header = len(rows)
		}
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, w.inline(c))
		}
		rows = append(rows, cells)
	}

	cols := len(t.Alignments)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	widths := make([]int, cols)
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], cellWidth(c))
		}
	}

	sep := w.styles.muted.Render(" │ ")
	for ri, r := range rows {
		parts := make([]string, cols)
		for i := range cols {
			var c string
			if i < len(r) {
				c = r[i]
			}
			align := east.AlignNone
			if i < len(t.Alignments) {
				align = t.Alignments[i]
			}
			if ri == header {
				c = w.styles.tableHead.Render(c)
			}
			parts[i] = pad(c, widths[i], align)
		}
		w.line(strings.TrimRight(strings.Join(parts, sep), " "))
		if ri == header {
			rules := make([]string, cols)
			for i, wd := range widths {
				rules[i] = strings.Repeat("─", wd)
			}
			w.line(w.styles.muted.Render(strings.Join(rules, "─┼─")))
		}
	}
}

func cellWidth(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

func pad(s string, width int, align east.Alignment) string {
	gap := width - cellWidth(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case east.AlignRight:
		return strings.Repeat(" ", gap) + s
	case east.AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}
