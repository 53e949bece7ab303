// Package bubbletea provides the interactive terminal UI for ndchat.
//
// The session runs in a tea.Cmd goroutine and talks to the UI only through
// a [Renderer], which turns every rendering call into a tea.Msg. Messages
// travel on one channel, so the model applies them in the order the session
// made the calls.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ndchat"
)

// Sender runs one conversation turn. [ndchat.Session] implements it.
type Sender interface {
	Send(ctx context.Context, message string) (ndchat.Turn, error)
}

// Run creates and runs the Bubble Tea program and blocks until it exits.
// When ctx is cancelled the program quits. The returned model holds the
// turns completed during the run.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (Model, error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(m, opts...)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	fm, err := p.Run()
	final, ok := fm.(Model)
	if !ok {
		final = m
	}
	if final.cancel != nil {
		final.cancel()
	}
	m.renderer.Close()
	return final, err
}

// UserMessageMsg shows the message that started a turn.
type UserMessageMsg struct{ Text string }

// AssistantTargetMsg creates an empty assistant text block.
type AssistantTargetMsg struct{ ID int }

// AppendTextMsg appends a content fragment to an assistant block.
type AppendTextMsg struct {
	ID   int
	Text string
}

// ReplaceWithErrorMsg replaces an assistant block's text with an error.
type ReplaceWithErrorMsg struct {
	ID   int
	Text string
}

// PendingMsg shows the indicator displayed until the stream opens.
type PendingMsg struct{ ID int }

// StatusMsg shows an ephemeral status line.
type StatusMsg struct {
	ID   int
	Text string
}

// RemoveStatusMsg removes a pending indicator or status line.
type RemoveStatusMsg struct{ ID int }

// ToolCallsMsg shows the tools the endpoint decided to invoke.
type ToolCallsMsg struct{ Tools []ndchat.ToolCall }

// ToolResultMsg shows the outcome of one tool invocation.
type ToolResultMsg struct {
	ToolName string
	Result   string
	IsError  bool
}

// InputEnabledMsg toggles the input line.
type InputEnabledMsg struct{ Enabled bool }

// TurnDoneMsg signals that Send returned. Err is a rejection; failures
// during the turn are in Turn.Err.
type TurnDoneMsg struct {
	Turn ndchat.Turn
	Err  error
}
