package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rivo/uniseg"
)

var _ MessageBlock = (*ToolResultBlock)(nil)

// maxPreviewWidth caps the collapsed preview, in terminal cells.
const maxPreviewWidth = 60

// ToolResultBlock renders a tool result with a collapsible toggle.
// Success results start collapsed to a one-line preview; errors are always
// expanded.
type ToolResultBlock struct {
	toolName  string
	content   string
	isError   bool
	collapsed bool
	focused   bool
	styles    Styles
}

// NewToolResultBlock creates a ToolResultBlock.
func NewToolResultBlock(toolName, content string, isError bool, styles Styles) *ToolResultBlock {
	return &ToolResultBlock{
		toolName:  toolName,
		content:   content,
		isError:   isError,
		collapsed: !isError,
		styles:    styles,
	}
}

// IsError reports whether this block shows a tool failure.
func (b *ToolResultBlock) IsError() bool { return b.isError }

// Collapsed reports whether only the preview is shown.
func (b *ToolResultBlock) Collapsed() bool { return b.collapsed }

func (b *ToolResultBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	switch msg := msg.(type) {
	case ToggleMsg:
		if !b.isError {
			b.collapsed = !b.collapsed
		}
	case focusMsg:
		b.focused = bool(msg)
	}
	return b, nil
}

func (b *ToolResultBlock) View(width int) string {
	icon := b.styles.Success.Render("✓")
	if b.isError {
		icon = b.styles.Error.Render("✗")
	}
	indicator := "▼"
	if b.collapsed {
		indicator = "▶"
	}
	header := b.styles.ToolCall.Render(indicator+" "+b.toolName) + " " + icon
	if b.focused {
		header = b.styles.Focus.Render("›") + header
	}

	var content string
	switch {
	case b.content == "":
		content = header
	case b.collapsed:
		content = header + "  " + b.styles.Muted.Render(preview(b.content))
	case b.isError:
		content = header + "\n" + b.styles.Error.Render(b.content)
	default:
		content = header + "\n" + b.content
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}

// preview returns the first line of s truncated to maxPreviewWidth cells.
func preview(s string) string {
	line, _, more := strings.Cut(strings.TrimSpace(s), "\n")
	if more {
		line += " …"
	}
	return truncate(line, maxPreviewWidth, "…")
}

// truncate cuts s to at most width cells, ending with tail, without
// splitting a grapheme cluster.
func truncate(s string, width int, tail string) string {
	if uniseg.StringWidth(s) <= width {
		return s
	}
	limit := width - uniseg.StringWidth(tail)
	var (
		b     strings.Builder
		w     int
		state = -1
	)
	for s != "" {
		var (
			cluster string
			cw      int
		)
		cluster, s, cw, state = uniseg.FirstGraphemeClusterInString(s, state)
		if w+cw > limit {
			break
		}
		b.WriteString(cluster)
		w += cw
	}
	return b.String() + tail
}
