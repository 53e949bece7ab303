package bubbletea

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*StatusBlock)(nil)

// pendingText is shown while waiting for the stream to open.
const pendingText = "thinking…"

// StatusBlock renders an ephemeral progress line with a spinner. The model
// removes it when the session removes the matching handle.
type StatusBlock struct {
	text    string
	spinner spinner.Model
	styles  Styles
}

// NewStatusBlock creates a StatusBlock. Start its spinner with Tick.
func NewStatusBlock(text string, styles Styles) *StatusBlock {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.Status))
	return &StatusBlock{text: text, spinner: s, styles: styles}
}

// Text returns the status line.
func (b *StatusBlock) Text() string { return b.text }

// Tick starts the spinner animation.
func (b *StatusBlock) Tick() tea.Cmd { return b.spinner.Tick }

func (b *StatusBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		b.spinner, cmd = b.spinner.Update(tick)
		return b, cmd
	}
	return b, nil
}

func (b *StatusBlock) View(width int) string {
	content := b.spinner.View() + " " + b.styles.Status.Render(b.text)
	return lipgloss.NewStyle().Width(width).Render(content)
}
