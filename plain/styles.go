package plain

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ndchat"
)

type styles struct {
	user    lipgloss.Style
	status  lipgloss.Style
	tool    lipgloss.Style
	success lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, t ndchat.Theme) styles {
	return styles{
		user:    r.NewStyle().Foreground(ansiColor(t.UserMsg)).Bold(true),
		status:  r.NewStyle().Foreground(ansiColor(t.Status)).Italic(true),
		tool:    r.NewStyle().Foreground(ansiColor(t.ToolCall)),
		success: r.NewStyle().Foreground(ansiColor(t.Success)),
		err:     r.NewStyle().Foreground(ansiColor(t.Error)),
		muted:   r.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
