package bubbletea

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ndchat"
)

// Interface compliance checks.
var (
	_ ndchat.Renderer        = (*Renderer)(nil)
	_ ndchat.AssistantTarget = (*target)(nil)
	_ ndchat.StatusHandle    = (*statusHandle)(nil)
)

// opBuffer is the capacity of the op channel. A full buffer blocks the
// session until the model catches up.
const opBuffer = 256

// Renderer implements [ndchat.Renderer] by queueing tea messages for the
// model. Create it once and share it between the session and the model.
type Renderer struct {
	ops    chan tea.Msg
	done   chan struct{}
	once   sync.Once
	nextID atomic.Int64
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		ops:  make(chan tea.Msg, opBuffer),
		done: make(chan struct{}),
	}
}

// Close releases a session blocked on a full queue. Ops sent after Close
// are dropped.
func (r *Renderer) Close() {
	r.once.Do(func() { close(r.done) })
}

// Listen returns a command that waits for the next queued op.
func (r *Renderer) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.ops:
			return msg
		case <-r.done:
			return nil
		}
	}
}

func (r *Renderer) send(msg tea.Msg) {
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.ops <- msg:
	case <-r.done:
	}
}

func (r *Renderer) id() int { return int(r.nextID.Add(1)) }

func (r *Renderer) RenderUserMessage(text string) {
	r.send(UserMessageMsg{Text: text})
}

func (r *Renderer) NewAssistantTarget() ndchat.AssistantTarget {
	t := &target{r: r, id: r.id()}
	r.send(AssistantTargetMsg{ID: t.id})
	return t
}

func (r *Renderer) RenderPending() ndchat.StatusHandle {
	h := &statusHandle{r: r, id: r.id()}
	r.send(PendingMsg{ID: h.id})
	return h
}

func (r *Renderer) RenderStatus(text string) ndchat.StatusHandle {
	h := &statusHandle{r: r, id: r.id()}
	r.send(StatusMsg{ID: h.id, Text: text})
	return h
}

func (r *Renderer) RenderToolCalls(tools []ndchat.ToolCall) {
	r.send(ToolCallsMsg{Tools: append([]ndchat.ToolCall(nil), tools...)})
}

func (r *Renderer) RenderToolResult(toolName, result string) {
	r.send(ToolResultMsg{ToolName: toolName, Result: result})
}

func (r *Renderer) RenderToolError(toolName, errText string) {
	r.send(ToolResultMsg{ToolName: toolName, Result: errText, IsError: true})
}

func (r *Renderer) SetInputEnabled(enabled bool) {
	r.send(InputEnabledMsg{Enabled: enabled})
}

// finish queues the end-of-turn message behind the turn's ops.
func (r *Renderer) finish(turn ndchat.Turn, err error) {
	r.send(TurnDoneMsg{Turn: turn, Err: err})
}

type target struct {
	r  *Renderer
	id int
}

func (t *target) Append(text string) {
	t.r.send(AppendTextMsg{ID: t.id, Text: text})
}

func (t *target) ReplaceWithError(text string) {
	t.r.send(ReplaceWithErrorMsg{ID: t.id, Text: text})
}

type statusHandle struct {
	r    *Renderer
	id   int
	once sync.Once
}

func (h *statusHandle) Remove() {
	h.once.Do(func() { h.r.send(RemoveStatusMsg{ID: h.id}) })
}
