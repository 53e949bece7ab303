package ndchat_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/ndchat"
	"github.com/fwojciec/ndchat/mock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an ndchat.Renderer that logs every call.
type recorder struct {
	mu      sync.Mutex
	ops     []string
	targets []*recTarget
	status  []*recStatus
	input   bool
}

type recTarget struct {
	r    *recorder
	text string
}

type recStatus struct {
	r       *recorder
	text    string
	removed bool
}

func (r *recorder) log(format string, args ...any) {
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

func (r *recorder) RenderUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("user:%s", text)
}

func (r *recorder) NewAssistantTarget() ndchat.AssistantTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("target")
	t := &recTarget{r: r}
	r.targets = append(r.targets, t)
	return t
}

func (r *recorder) RenderPending() ndchat.StatusHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("pending")
	s := &recStatus{r: r, text: "pending"}
	r.status = append(r.status, s)
	return s
}

func (r *recorder) RenderStatus(text string) ndchat.StatusHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("status:%s", text)
	s := &recStatus{r: r, text: text}
	r.status = append(r.status, s)
	return s
}

func (r *recorder) RenderToolCalls(tools []ndchat.ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(tools))
	for i, tc := range tools {
		names[i] = tc.Name
	}
	r.log("tools:%s", strings.Join(names, ","))
}

func (r *recorder) RenderToolResult(toolName, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("result:%s=%s", toolName, result)
}

func (r *recorder) RenderToolError(toolName, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log("toolerr:%s=%s", toolName, errText)
}

func (r *recorder) SetInputEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = enabled
	r.log("input:%t", enabled)
}

func (t *recTarget) Append(text string) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.text += text
	t.r.log("append:%s", text)
}

func (t *recTarget) ReplaceWithError(text string) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.text = "❌ " + text
	t.r.log("error:%s", text)
}

func (s *recStatus) Remove() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.removed {
		return
	}
	s.removed = true
	s.r.log("remove:%s", s.text)
}

// Ops returns a copy of the call log.
func (r *recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Visible returns the texts of status indicators not yet removed.
func (r *recorder) Visible() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.status {
		if !s.removed {
			out = append(out, s.text)
		}
	}
	return out
}

// Targets returns the current text of every assistant target.
func (r *recorder) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.targets))
	for i, t := range r.targets {
		out[i] = t.text
	}
	return out
}

// chunkTransport returns a transport serving chunks and counting Open calls.
func chunkTransport(chunks ...string) (*mock.Transport, *atomic.Int32) {
	var opens atomic.Int32
	return &mock.Transport{
		OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
			opens.Add(1)
			return mock.Chunks(chunks...), nil
		},
	}, &opens
}

func lines(records ...string) string {
	return strings.Join(records, "\n") + "\n"
}

func TestSession_Send(t *testing.T) {
	t.Parallel()

	t.Run("full turn renders events in order", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"start","message":"starting"}`,
			`{"type":"tool_calls","tools":[{"name":"weather","arguments":{"city":"Paris"}}]}`,
			`{"type":"tool_executing","tool_name":"weather","message":"calling weather"}`,
			`{"type":"tool_result","tool_name":"weather","result":"sunny"}`,
			`{"type":"generating","message":"writing"}`,
			`{"type":"content","content":"It is "}`,
			`{"type":"content","content":"sunny."}`,
			`{"type":"end","message":"done"}`,
		))
		r := &recorder{}
		s := ndchat.NewSession(tr, r)

		turn, err := s.Send(context.Background(), "  weather in Paris?  ")
		require.NoError(t, err)

		assert.Equal(t, []string{
			"input:false",
			"user:weather in Paris?",
			"pending",
			"remove:pending",
			"target",
			"status:starting",
			"tools:weather",
			"status:calling weather",
			"result:weather=sunny",
			"status:writing",
			"append:It is ",
			"append:sunny.",
			"remove:starting",
			"remove:calling weather",
			"remove:writing",
			"input:true",
		}, r.Ops())
		assert.Empty(t, r.Visible())
		assert.False(t, s.Active())

		assert.NotEmpty(t, turn.ID)
		assert.Equal(t, "weather in Paris?", turn.Message)
		assert.Equal(t, "It is sunny.", turn.Reply)
		assert.NoError(t, turn.Err)
		assert.Zero(t, turn.Malformed)
		require.Len(t, turn.Tools, 1)
		assert.Equal(t, "weather", turn.Tools[0].Name)
		assert.JSONEq(t, `{"city":"Paris"}`, string(turn.Tools[0].Arguments))
		assert.Equal(t, "sunny", turn.Tools[0].Output)
		assert.True(t, turn.Tools[0].Finished)
		assert.False(t, turn.Tools[0].IsError)
		assert.False(t, turn.EndedAt.Before(turn.StartedAt))
	})

	t.Run("content fragments accumulate in order", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"content","content":"Hel"}`,
			`{"type":"content","content":"lo, "}`,
			`{"type":"content","content":"world"}`,
		))
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)

		assert.Equal(t, []string{"Hello, world"}, r.Targets())
		assert.Equal(t, "Hello, world", turn.Reply)
	})

	t.Run("records split across chunks at arbitrary boundaries", func(t *testing.T) {
		t.Parallel()
		stream := []byte(lines(
			`{"type":"content","content":"北京"}`,
			`{"type":"content","content":"天气 ☀️"}`,
		))
		for _, size := range []int{1, 2, 3, 5, 7, 64} {
			var chunks []string
			for i := 0; i < len(stream); i += size {
				end := min(i+size, len(stream))
				chunks = append(chunks, string(stream[i:end]))
			}
			tr, _ := chunkTransport(chunks...)
			r := &recorder{}
			turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
			require.NoError(t, err)
			assert.Equal(t, []string{"北京天气 ☀️"}, r.Targets(), "chunk size %d", size)
			assert.Equal(t, "北京天气 ☀️", turn.Reply, "chunk size %d", size)
			assert.Zero(t, turn.Malformed, "chunk size %d", size)
		}
	})

	t.Run("unterminated final record is flushed and dispatched", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(`{"type":"content","content":"a"}`+"\n", `{"type":"content","content":"b"}`)
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "ab", turn.Reply)
	})

	t.Run("blank lines are skipped without counting as malformed", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport("\n   \n"+`{"type":"content","content":"x"}`+"\n\n", "  ")
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "x", turn.Reply)
		assert.Zero(t, turn.Malformed)
	})

	t.Run("malformed record is skipped and the turn continues", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"content","content":"before "}`,
			`{not json`,
			`{"type":"content","content":"after"}`,
			`{"type":"end"}`,
		))
		var logs bytes.Buffer
		r := &recorder{}
		s := ndchat.NewSession(tr, r, ndchat.WithLogger(zerolog.New(&logs)))
		turn, err := s.Send(context.Background(), "hi")
		require.NoError(t, err)

		assert.Equal(t, "before after", turn.Reply)
		assert.Equal(t, 1, turn.Malformed)
		assert.NoError(t, turn.Err)
		assert.Contains(t, logs.String(), "skipping malformed record")
		assert.Contains(t, logs.String(), `"line":"{not json"`)
		assert.Contains(t, logs.String(), `"len":9`)
		assert.Equal(t, "input:true", r.Ops()[len(r.Ops())-1])
	})

	t.Run("unknown event kinds are ignored", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"usage","tokens":12}`,
			`{"type":"content","content":"ok"}`,
		))
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"input:false", "user:hi", "pending", "remove:pending", "target", "append:ok", "input:true",
		}, r.Ops())
		assert.Zero(t, turn.Malformed)
	})

	t.Run("end removes all status indicators and suppresses later ones", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"start","message":"one"}`,
			`{"type":"generating","message":"two"}`,
			`{"type":"end"}`,
			`{"type":"tool_executing","message":"late"}`,
		))
		r := &recorder{}
		_, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Empty(t, r.Visible())
		assert.NotContains(t, r.Ops(), "status:late")
	})

	t.Run("stream without end clears status indicators", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(`{"type":"start","message":"one"}`))
		r := &recorder{}
		_, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Empty(t, r.Visible())
		assert.Equal(t, []string{"status:one", "remove:one", "input:true"}, r.Ops()[len(r.Ops())-3:])
	})

	t.Run("error event clears status indicators", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"start","message":"starting"}`,
			`{"type":"generating","message":"generating"}`,
			`{"type":"error","error":"model overloaded"}`,
		))
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.ErrorIs(t, turn.Err, ndchat.ErrEndpoint)
		assert.Empty(t, r.Visible())
	})

	t.Run("indicators of a failed turn do not outlive it", func(t *testing.T) {
		t.Parallel()
		streams := []string{
			lines(`{"type":"start","message":"starting"}`, `{"type":"generating","message":"generating"}`, `{"type":"error","error":"boom"}`),
			lines(`{"type":"start","message":"again"}`, `{"type":"content","content":"ok"}`, `{"type":"end"}`),
		}
		var n atomic.Int32
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return mock.Chunks(streams[n.Add(1)-1]), nil
			},
		}
		r := &recorder{}
		s := ndchat.NewSession(tr, r)

		_, err := s.Send(context.Background(), "first")
		require.NoError(t, err)
		assert.Empty(t, r.Visible())

		turn, err := s.Send(context.Background(), "second")
		require.NoError(t, err)
		assert.Equal(t, "ok", turn.Reply)
		assert.Empty(t, r.Visible())
	})

	t.Run("error event replaces the assistant text", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"content","content":"partial"}`,
			`{"type":"error","error":"model overloaded"}`,
		))
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, []string{"❌ model overloaded"}, r.Targets())
		assert.Empty(t, turn.Reply)
		assert.ErrorIs(t, turn.Err, ndchat.ErrEndpoint)
		assert.Contains(t, turn.Err.Error(), "model overloaded")
	})

	t.Run("tool errors are rendered and recorded", func(t *testing.T) {
		t.Parallel()
		tr, _ := chunkTransport(lines(
			`{"type":"tool_calls","tools":[{"name":"weather","arguments":{}}]}`,
			`{"type":"tool_error","tool_name":"weather","error":"timeout"}`,
		))
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Contains(t, r.Ops(), "toolerr:weather=timeout")
		require.Len(t, turn.Tools, 1)
		assert.True(t, turn.Tools[0].IsError)
		assert.Equal(t, "timeout", turn.Tools[0].Output)
	})
}

func TestSession_SendRejected(t *testing.T) {
	t.Parallel()

	for _, msg := range []string{"", "   ", "\n\t"} {
		t.Run(fmt.Sprintf("blank %q", msg), func(t *testing.T) {
			t.Parallel()
			tr, opens := chunkTransport()
			r := &recorder{}
			s := ndchat.NewSession(tr, r)

			turn, err := s.Send(context.Background(), msg)
			assert.ErrorIs(t, err, ndchat.ErrEmptyMessage)
			assert.Zero(t, turn)
			assert.Empty(t, r.Ops())
			assert.Zero(t, opens.Load())
			assert.False(t, s.Active())
		})
	}

	t.Run("second send while a turn is active is a no-op", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		var opens atomic.Int32
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				opens.Add(1)
				sent := false
				return &mock.ChunkSource{NextFn: func() ([]byte, error) {
					if !sent {
						sent = true
						<-release
						return []byte(`{"type":"content","content":"done"}` + "\n"), nil
					}
					return nil, io.EOF
				}}, nil
			},
		}
		r := &recorder{}
		s := ndchat.NewSession(tr, r)

		done := make(chan ndchat.Turn, 1)
		go func() {
			turn, _ := s.Send(context.Background(), "first")
			done <- turn
		}()
		require.Eventually(t, func() bool { return opens.Load() == 1 }, time.Second, time.Millisecond)
		require.True(t, s.Active())

		_, err := s.Send(context.Background(), "second")
		assert.ErrorIs(t, err, ndchat.ErrTurnActive)

		close(release)
		turn := <-done
		assert.Equal(t, "done", turn.Reply)
		assert.Equal(t, int32(1), opens.Load())
		assert.NotContains(t, r.Ops(), "user:second")
		assert.False(t, s.Active())

		// The session accepts a new turn once the first one finished.
		release = make(chan struct{})
		close(release)
		_, err = s.Send(context.Background(), "third")
		require.NoError(t, err)
		assert.Equal(t, int32(2), opens.Load())
	})
}

func TestSession_SendFailures(t *testing.T) {
	t.Parallel()

	t.Run("transport failure renders error in a fresh target", func(t *testing.T) {
		t.Parallel()
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return nil, fmt.Errorf("http: status 500: %w", ndchat.ErrTransport)
			},
		}
		r := &recorder{}
		s := ndchat.NewSession(tr, r)
		turn, err := s.Send(context.Background(), "hi")
		require.NoError(t, err)

		assert.Equal(t, []string{
			"input:false",
			"user:hi",
			"pending",
			"remove:pending",
			"target",
			"error:connection error: http: status 500: transport error",
			"input:true",
		}, r.Ops())
		assert.ErrorIs(t, turn.Err, ndchat.ErrTransport)
		assert.Empty(t, r.Visible())
		assert.False(t, s.Active())
	})

	t.Run("mid-stream failure keeps partial content visible", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("connection reset by peer")
		closed := false
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				n := 0
				return &mock.ChunkSource{
					NextFn: func() ([]byte, error) {
						n++
						if n == 1 {
							return []byte(`{"type":"content","content":"partial"}` + "\n" + `{"type":"con`), nil
						}
						return nil, wantErr
					},
					CloseFn: func() error {
						closed = true
						return nil
					},
				}, nil
			},
		}
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)

		assert.Equal(t, []string{"partial", "❌ connection error: connection reset by peer"}, r.Targets())
		assert.Empty(t, r.Visible())
		assert.ErrorIs(t, turn.Err, wantErr)
		assert.Equal(t, "partial", turn.Reply)
		assert.True(t, closed)
		assert.Equal(t, "input:true", r.Ops()[len(r.Ops())-1])
	})

	t.Run("failure before any content reuses the empty target", func(t *testing.T) {
		t.Parallel()
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return &mock.ChunkSource{NextFn: func() ([]byte, error) {
					return nil, errors.New("unexpected EOF")
				}}, nil
			},
		}
		r := &recorder{}
		_, err := ndchat.NewSession(tr, r).Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, []string{"❌ connection error: unexpected EOF"}, r.Targets())
	})

	t.Run("cancellation ends the turn", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return &mock.ChunkSource{NextFn: func() ([]byte, error) {
					cancel()
					<-ctx.Done()
					return nil, ctx.Err()
				}}, nil
			},
		}
		r := &recorder{}
		s := ndchat.NewSession(tr, r)
		turn, err := s.Send(ctx, "hi")
		require.NoError(t, err)

		assert.ErrorIs(t, turn.Err, context.Canceled)
		assert.Equal(t, []string{"❌ request canceled"}, r.Targets())
		assert.False(t, s.Active())
	})

	t.Run("canceled before open", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return nil, ctx.Err()
			},
		}
		r := &recorder{}
		turn, err := ndchat.NewSession(tr, r).Send(ctx, "hi")
		require.NoError(t, err)
		assert.ErrorIs(t, turn.Err, context.Canceled)
		assert.Empty(t, r.Visible())
	})
}
