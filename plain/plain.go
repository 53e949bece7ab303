// Package plain implements [ndchat.Renderer] as a line-oriented writer for
// non-interactive use, such as answering one message from a script.
//
// Streamed text is written as it arrives. Everything else (status lines,
// tool activity, errors) is written as whole lines, optionally to a separate
// writer so the answer can be piped on its own.
package plain

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ndchat"
)

// Interface compliance checks.
var (
	_ ndchat.Renderer        = (*Renderer)(nil)
	_ ndchat.AssistantTarget = (*target)(nil)
	_ ndchat.StatusHandle    = (*status)(nil)
)

// Renderer writes a conversation to an io.Writer.
type Renderer struct {
	mu     sync.Mutex
	out    *line
	info   *line
	styles styles
	quiet  bool
}

// Option configures a [Renderer].
type Option func(*Renderer)

// WithStatusWriter sends status lines and tool activity to w instead of the
// main writer.
func WithStatusWriter(w io.Writer) Option {
	return func(r *Renderer) { r.info = &line{w: w} }
}

// WithQuiet suppresses status lines and the echoed user message.
func WithQuiet() Option {
	return func(r *Renderer) { r.quiet = true }
}

// New creates a Renderer writing to w with colors from theme. Colors are
// dropped when w is not a terminal.
func New(w io.Writer, theme ndchat.Theme, opts ...Option) *Renderer {
	r := &Renderer{out: &line{w: w}}
	for _, o := range opts {
		o(r)
	}
	if r.info == nil {
		r.info = r.out
	}
	r.styles = newStyles(lipgloss.NewRenderer(r.info.w), theme)
	return r
}

func (r *Renderer) RenderUserMessage(text string) {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.println(r.styles.user.Render("> ") + text)
}

func (r *Renderer) NewAssistantTarget() ndchat.AssistantTarget {
	return &target{r: r}
}

// RenderPending writes nothing; the stream usually opens at once and a
// line that cannot be erased would only add noise.
func (r *Renderer) RenderPending() ndchat.StatusHandle {
	return &status{}
}

func (r *Renderer) RenderStatus(text string) ndchat.StatusHandle {
	if !r.quiet {
		r.mu.Lock()
		r.info.println(r.styles.status.Render("… " + text))
		r.mu.Unlock()
	}
	return &status{text: text}
}

func (r *Renderer) RenderToolCalls(tools []ndchat.ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tc := range tools {
		args := strings.Join(strings.Fields(ndchat.FormatArguments(tc.Arguments)), " ")
		r.info.println(r.styles.tool.Render("🔧 "+tc.Name) + " " + r.styles.muted.Render(args))
	}
}

func (r *Renderer) RenderToolResult(toolName, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.println(r.styles.success.Render("✓ "+toolName) + body(result))
}

func (r *Renderer) RenderToolError(toolName, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.println(r.styles.err.Render("✗ "+toolName) + body(errText))
}

// SetInputEnabled terminates the streamed answer with a newline when a turn
// ends.
func (r *Renderer) SetInputEnabled(enabled bool) {
	if !enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.endLine()
	r.info.endLine()
}

type target struct {
	r *Renderer
}

func (t *target) Append(text string) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if t.r.info != t.r.out {
		t.r.info.endLine()
	}
	t.r.out.print(text)
}

// ReplaceWithError cannot take back text already written, so the error is
// written on its own line after it.
func (t *target) ReplaceWithError(text string) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.out.println(t.r.styles.err.Render("✗ " + text))
}

type status struct{ text string }

func (*status) Remove() {}

// line tracks whether the last write to w left an unterminated line.
type line struct {
	w    io.Writer
	open bool
}

func (l *line) print(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(l.w, s)
	l.open = !strings.HasSuffix(s, "\n")
}

func (l *line) println(s string) {
	l.endLine()
	fmt.Fprintln(l.w, s)
}

func (l *line) endLine() {
	if l.open {
		fmt.Fprintln(l.w)
		l.open = false
	}
}

// body follows a header with s: on the same line when s is a single line,
// indented below it otherwise.
func body(s string) string {
	s = strings.TrimRight(s, "\n")
	if !strings.Contains(s, "\n") {
		return " " + s
	}
	return "\n  " + strings.ReplaceAll(s, "\n", "\n  ")
}
