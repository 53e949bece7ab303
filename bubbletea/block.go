package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// MessageBlock is a renderable element in the conversation.
// Unlike tea.Model, View takes a width parameter so the root model
// controls layout and blocks are testable in isolation.
type MessageBlock interface {
	Update(tea.Msg) (MessageBlock, tea.Cmd)
	View(width int) string
}

// ToggleMsg tells a collapsible block to toggle its collapsed state.
// Sent by the root model when the user presses Tab on a focused block.
type ToggleMsg struct{}

// collapsible reports whether b responds to ToggleMsg.
func collapsible(b MessageBlock) bool {
	switch b.(type) {
	case *ToolCallBlock, *ToolResultBlock:
		return true
	}
	return false
}

// blockSeparator returns the gap placed between two adjacent blocks.
// Consecutive tool and status blocks stack tightly; everything else is
// separated by a blank line.
func blockSeparator(prev, curr MessageBlock) string {
	if compact(prev) && compact(curr) {
		return "\n"
	}
	return "\n\n"
}

func compact(b MessageBlock) bool {
	switch b.(type) {
	case *ToolCallBlock, *ToolResultBlock, *StatusBlock:
		return true
	}
	return false
}
