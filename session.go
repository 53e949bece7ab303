package ndchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session drives conversation turns: it sends a message through a Transport,
// frames and decodes the response stream and dispatches every event to a
// Renderer. At most one turn runs at a time.
type Session struct {
	transport Transport
	renderer  Renderer
	logger    zerolog.Logger
	active    atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for stream diagnostics. The default
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a Session rendering to r and reaching the endpoint via t.
func NewSession(t Transport, r Renderer, opts ...Option) *Session {
	s := &Session{
		transport: t,
		renderer:  r,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Active reports whether a turn is in progress.
func (s *Session) Active() bool { return s.active.Load() }

// Send runs one turn for message and blocks until the stream ends or fails.
// It returns ErrTurnActive or ErrEmptyMessage, without rendering anything,
// when the message is rejected. Failures during the turn are rendered and
// reported through Turn.Err; they are never returned.
func (s *Session) Send(ctx context.Context, message string) (Turn, error) {
	if s.active.Load() {
		return Turn{}, ErrTurnActive
	}
	text := strings.TrimSpace(message)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}
	if !s.active.CompareAndSwap(false, true) {
		return Turn{}, ErrTurnActive
	}
	defer func() {
		s.active.Store(false)
		s.renderer.SetInputEnabled(true)
	}()

	ts := &turnState{
		renderer: s.renderer,
		decoder:  NewTextDecoder(),
		turn: Turn{
			ID:        uuid.NewString(),
			Message:   text,
			StartedAt: time.Now(),
		},
	}
	ts.log = s.logger.With().Str("turn", ts.turn.ID).Logger()
	ts.log.Debug().Int("len", len(text)).Msg("turn started")

	s.renderer.SetInputEnabled(false)
	s.renderer.RenderUserMessage(text)
	ts.pending = s.renderer.RenderPending()
	ts.status = append(ts.status, ts.pending)

	if err := ts.stream(ctx, s.transport); err != nil {
		ts.fail(ctx, err)
	}
	ts.clearStatus()

	ts.turn.Reply = ts.reply.String()
	ts.turn.EndedAt = time.Now()
	ts.log.Debug().
		Int("reply_len", len(ts.turn.Reply)).
		Int("malformed", ts.turn.Malformed).
		AnErr("err", ts.turn.Err).
		Msg("turn finished")
	return ts.turn, nil
}

// turnState is the mutable state of a single turn.
type turnState struct {
	renderer Renderer
	log      zerolog.Logger
	framer   LineFramer
	decoder  *TextDecoder

	turn    Turn
	reply   strings.Builder
	target  AssistantTarget
	shown   bool // target holds text or an error
	pending StatusHandle
	status  []StatusHandle
	ended   bool
}

func (ts *turnState) stream(ctx context.Context, t Transport) error {
	src, err := t.Open(ctx, Request{Message: ts.turn.Message})
	if err != nil {
		return err
	}
	defer src.Close()

	ts.removeStatus(ts.pending)
	ts.pending = nil
	ts.assistant()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := src.Next()
		if len(chunk) > 0 {
			ts.feed(ts.decoder.Decode(chunk))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	ts.feed(ts.decoder.Finish())
	if rest, ok := ts.framer.Flush(); ok {
		ts.handleRecord(rest)
	}
	return nil
}

func (ts *turnState) feed(text string) {
	if text == "" {
		return
	}
	for _, line := range ts.framer.Feed(text) {
		ts.handleRecord(line)
	}
}

func (ts *turnState) handleRecord(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	evt, err := DecodeEvent([]byte(line))
	if err != nil {
		ts.turn.Malformed++
		ts.log.Warn().Err(err).Str("line", line).Int("len", len(line)).Msg("skipping malformed record")
		return
	}
	ts.dispatch(evt)
}

// dispatch applies the UI effect of a single event.
func (ts *turnState) dispatch(evt Event) {
	switch e := evt.(type) {
	case EventStart:
		ts.showStatus(e.Message)
	case EventToolCalls:
		ts.renderer.RenderToolCalls(e.Tools)
		for _, tc := range e.Tools {
			ts.turn.Tools = append(ts.turn.Tools, ToolActivity{Name: tc.Name, Arguments: tc.Arguments})
		}
	case EventToolExecuting:
		ts.showStatus(e.Message)
	case EventToolResult:
		ts.renderer.RenderToolResult(e.ToolName, e.Result)
		ts.turn.finishTool(e.ToolName, e.Result, false)
	case EventToolError:
		ts.renderer.RenderToolError(e.ToolName, e.Error)
		ts.turn.finishTool(e.ToolName, e.Error, true)
	case EventGenerating:
		ts.showStatus(e.Message)
	case EventContent:
		ts.assistant().Append(e.Content)
		ts.reply.WriteString(e.Content)
		ts.shown = true
	case EventEnd:
		ts.clearStatus()
		ts.ended = true
	case EventError:
		ts.assistant().ReplaceWithError(e.Error)
		ts.reply.Reset()
		ts.shown = true
		ts.turn.Err = fmt.Errorf("%w: %s", ErrEndpoint, e.Error)
	case EventUnknown:
		ts.log.Debug().Str("type", e.Type).Msg("ignoring unknown event")
	default:
		ts.log.Debug().Str("event", fmt.Sprintf("%T", evt)).Msg("ignoring event")
	}
}

// fail renders a transport failure into the assistant target.
func (ts *turnState) fail(ctx context.Context, err error) {
	if ts.pending != nil {
		ts.removeStatus(ts.pending)
		ts.pending = nil
	}
	msg := "connection error: " + err.Error()
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		msg = "request canceled"
	}
	// Streamed text stays visible; the error gets a target of its own.
	if ts.shown {
		ts.target = nil
	}
	ts.assistant().ReplaceWithError(msg)
	ts.turn.Err = err
	ts.log.Debug().Err(err).Msg("turn failed")
}

// assistant returns the turn's assistant target, creating it on first use.
func (ts *turnState) assistant() AssistantTarget {
	if ts.target == nil {
		ts.target = ts.renderer.NewAssistantTarget()
	}
	return ts.target
}

// clearStatus removes every indicator the turn still shows. It runs on end
// and again when the turn finishes, however it finishes.
func (ts *turnState) clearStatus() {
	for _, h := range ts.status {
		h.Remove()
	}
	ts.status = nil
	ts.pending = nil
}

func (ts *turnState) showStatus(text string) {
	if ts.ended {
		ts.log.Debug().Str("status", text).Msg("status after end ignored")
		return
	}
	ts.status = append(ts.status, ts.renderer.RenderStatus(text))
}

func (ts *turnState) removeStatus(h StatusHandle) {
	if h == nil {
		return
	}
	for i, s := range ts.status {
		if s == h {
			ts.status = append(ts.status[:i], ts.status[i+1:]...)
			break
		}
	}
	h.Remove()
}
