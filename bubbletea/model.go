package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ndchat"
	"github.com/fwojciec/ndchat/goldmark"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the ndchat TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	sender   Sender
	renderer *Renderer
	md       *goldmark.Renderer
	styles   Styles

	blocks     []MessageBlock
	blockFocus int // index of focused collapsible block (-1 = none)

	// Blocks created by the renderer, keyed by op ID.
	targets map[int]*AssistantTextBlock
	status  map[int]*StatusBlock

	turns   []ndchat.Turn
	running bool
	cancel  context.CancelFunc
	err     error
	ready   bool
}

// Option configures a Model.
type Option func(*Model)

// WithHistory renders previously completed turns above the new conversation.
func WithHistory(turns []ndchat.Turn) Option {
	return func(m *Model) { m.turns = append(m.turns, turns...) }
}

// New creates a TUI Model. The session behind sender must render to r.
func New(sender Sender, r *Renderer, theme ndchat.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "› "
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		Input:      ti,
		sender:     sender,
		renderer:   r,
		md:         goldmark.New(theme),
		styles:     NewStyles(theme),
		blockFocus: -1,
		targets:    make(map[int]*AssistantTextBlock),
		status:     make(map[int]*StatusBlock),
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Running returns whether a turn is in progress.
func (m Model) Running() bool { return m.running }

// Err returns the failure of the last turn, if any.
func (m Model) Err() error { return m.err }

// Turns returns the history followed by the turns completed in this run.
func (m Model) Turns() []ndchat.Turn { return m.turns }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmds []tea.Cmd
		for _, b := range m.status {
			_, cmd := b.Update(msg)
			cmds = append(cmds, cmd)
		}
		m.refresh(false)
		return m, tea.Batch(cmds...)

	case TurnDoneMsg:
		return m.finishTurn(msg)

	case UserMessageMsg, AssistantTargetMsg, AppendTextMsg, ReplaceWithErrorMsg,
		PendingMsg, StatusMsg, RemoveStatusMsg, ToolCallsMsg, ToolResultMsg, InputEnabledMsg:
		var cmd tea.Cmd
		m, cmd = m.apply(msg)
		m.refresh(true)
		if m.running {
			return m, tea.Batch(cmd, m.renderer.Listen())
		}
		return m, cmd
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

// apply performs one rendering op from the session.
func (m Model) apply(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case UserMessageMsg:
		m.blocks = append(m.blocks, NewUserMessageBlock(msg.Text, m.styles))
	case AssistantTargetMsg:
		b := NewAssistantTextBlock(m.md, m.styles)
		m.targets[msg.ID] = b
		m.blocks = append(m.blocks, b)
	case AppendTextMsg:
		if b, ok := m.targets[msg.ID]; ok {
			b.Append(msg.Text)
		}
	case ReplaceWithErrorMsg:
		if b, ok := m.targets[msg.ID]; ok {
			b.ReplaceWithError(msg.Text)
		}
	case PendingMsg:
		return m.addStatus(msg.ID, pendingText)
	case StatusMsg:
		return m.addStatus(msg.ID, msg.Text)
	case RemoveStatusMsg:
		m = m.removeStatus(msg.ID)
	case ToolCallsMsg:
		for _, tc := range msg.Tools {
			m.blocks = append(m.blocks, NewToolCallBlock(tc, m.styles))
		}
		m = m.updateBlockFocus()
	case ToolResultMsg:
		m.blocks = append(m.blocks, NewToolResultBlock(msg.ToolName, msg.Result, msg.IsError, m.styles))
		m = m.updateBlockFocus()
	case InputEnabledMsg:
		if msg.Enabled {
			return m, m.Input.Focus()
		}
		m.Input.Blur()
	}
	return m, nil
}

func (m Model) addStatus(id int, text string) (Model, tea.Cmd) {
	b := NewStatusBlock(text, m.styles)
	m.status[id] = b
	m.blocks = append(m.blocks, b)
	return m, b.Tick()
}

func (m Model) removeStatus(id int) Model {
	b, ok := m.status[id]
	if !ok {
		return m
	}
	delete(m.status, id)
	blocks := m.blocks[:0:0]
	for _, blk := range m.blocks {
		if blk != MessageBlock(b) {
			blocks = append(blocks, blk)
		}
	}
	m.blocks = blocks
	return m.updateBlockFocus()
}

func (m Model) finishTurn(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.running = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	switch {
	case msg.Err != nil:
		m.err = msg.Err
	case msg.Turn.Err != nil && !errors.Is(msg.Turn.Err, context.Canceled):
		m.err = msg.Turn.Err
	}
	if msg.Turn.ID != "" {
		m.turns = append(m.turns, msg.Turn)
	}
	m = m.updateBlockFocus()
	m.refresh(true)
	return m, m.Input.Focus()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := max(msg.Height-inputH-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m = m.renderHistory()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.refresh(true)
	m.Input.Width = max(msg.Width-lipgloss.Width(m.Input.Prompt)-1, 1)
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyTab:
		if !m.running && m.blockFocus >= 0 {
			block, cmd := m.blocks[m.blockFocus].Update(ToggleMsg{})
			m.blocks[m.blockFocus] = block
			m.refresh(false)
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		if !m.running {
			m = m.cycleFocusPrev()
			m.refresh(false)
		}
		return m, nil
	}

	// When idle, pass keys to both input (for typing) and viewport (for
	// scrolling). Only non-character keys reach the viewport so typing 'j'
	// or 'k' does not scroll.
	if m.running {
		return m, nil
	}
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes && msg.Type != tea.KeySpace {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	return m, tea.Batch(
		startTurn(ctx, m.sender, m.renderer, text),
		m.renderer.Listen(),
	)
}

// startTurn runs one Send in the command goroutine. The done message goes
// through the renderer queue so it arrives after every op of the turn.
func startTurn(ctx context.Context, s Sender, r *Renderer, text string) tea.Cmd {
	return func() tea.Msg {
		turn, err := s.Send(ctx, text)
		r.finish(turn, err)
		return nil
	}
}

// renderHistory creates blocks for turns loaded from a transcript.
func (m Model) renderHistory() Model {
	for _, t := range m.turns {
		m.blocks = append(m.blocks, NewUserMessageBlock(t.Message, m.styles))
		for _, tool := range t.Tools {
			m.blocks = append(m.blocks, NewToolCallBlock(ndchat.ToolCall{Name: tool.Name, Arguments: tool.Arguments}, m.styles))
			if tool.Finished {
				m.blocks = append(m.blocks, NewToolResultBlock(tool.Name, tool.Output, tool.IsError, m.styles))
			}
		}
		if t.Reply != "" {
			b := NewAssistantTextBlock(m.md, m.styles)
			b.Append(t.Reply)
			m.blocks = append(m.blocks, b)
		}
		if t.Err != nil {
			m.blocks = append(m.blocks, NewErrorBlock(t.Err.Error(), m.styles))
		}
	}
	return m.updateBlockFocus()
}

// refresh re-renders the viewport content, optionally following the tail.
func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.renderContent())
	if follow {
		m.Viewport.GotoBottom()
	}
}

func (m Model) renderContent() string {
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString(blockSeparator(m.blocks[i-1], block))
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// updateBlockFocus focuses the last collapsible block.
func (m Model) updateBlockFocus() Model {
	focus := -1
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if collapsible(m.blocks[i]) {
			focus = i
			break
		}
	}
	return m.setFocus(focus)
}

// cycleFocusPrev moves focus to the previous collapsible block, wrapping around.
func (m Model) cycleFocusPrev() Model {
	n := len(m.blocks)
	start := m.blockFocus - 1
	if start < 0 {
		start = n - 1
	}
	for i := range n {
		idx := (start - i + n) % n
		if collapsible(m.blocks[idx]) {
			return m.setFocus(idx)
		}
	}
	return m.setFocus(-1)
}

func (m Model) setFocus(idx int) Model {
	m.blockFocus = idx
	for i, b := range m.blocks {
		if collapsible(b) {
			b.Update(focusMsg(i == idx))
		}
	}
	return m
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.running {
		return m.styles.Muted.Render("Streaming... Ctrl+C to cancel")
	}
	var count string
	switch n := len(m.turns); n {
	case 0:
	case 1:
		count = "1 turn · "
	default:
		count = fmt.Sprintf("%d turns · ", n)
	}
	if m.blockFocus >= 0 {
		return m.styles.Muted.Render(count + "Enter to send, Tab to expand, Shift+Tab to cycle, Ctrl+C to quit")
	}
	return m.styles.Muted.Render(count + "Enter to send, Ctrl+C to quit")
}
