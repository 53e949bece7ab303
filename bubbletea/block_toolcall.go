package bubbletea

import (
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ndchat"
)

var _ MessageBlock = (*ToolCallBlock)(nil)

// ToolCallBlock renders a tool invocation announced by the endpoint.
// It starts collapsed; expanding shows the pretty-printed arguments.
type ToolCallBlock struct {
	name      string
	args      json.RawMessage
	collapsed bool
	focused   bool
	styles    Styles
}

// NewToolCallBlock creates a collapsed ToolCallBlock.
func NewToolCallBlock(call ndchat.ToolCall, styles Styles) *ToolCallBlock {
	return &ToolCallBlock{name: call.Name, args: call.Arguments, collapsed: true, styles: styles}
}

// Name returns the tool name.
func (b *ToolCallBlock) Name() string { return b.name }

// Collapsed reports whether the arguments are hidden.
func (b *ToolCallBlock) Collapsed() bool { return b.collapsed }

func (b *ToolCallBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	switch msg := msg.(type) {
	case ToggleMsg:
		b.collapsed = !b.collapsed
	case focusMsg:
		b.focused = bool(msg)
	}
	return b, nil
}

func (b *ToolCallBlock) View(width int) string {
	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	header := b.styles.ToolCall.Render(indicator + " 🔧 " + b.name)
	if b.focused {
		header = b.styles.Focus.Render("›") + header
	}
	content := header
	if !b.collapsed {
		content += "\n" + b.styles.Muted.Render(ndchat.FormatArguments(b.args))
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}

// focusMsg marks a collapsible block as the one Tab acts on.
type focusMsg bool
