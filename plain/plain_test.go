package plain_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/ndchat"
	"github.com/fwojciec/ndchat/mock"
	"github.com/fwojciec/ndchat/plain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Content(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plain.New(&buf, ndchat.DefaultTheme())

	r.SetInputEnabled(false)
	r.RenderUserMessage("hi")
	r.RenderPending().Remove()
	target := r.NewAssistantTarget()
	target.Append("Hel")
	target.Append("lo")
	r.SetInputEnabled(true)

	assert.Equal(t, "> hi\nHello\n", ansi.Strip(buf.String()))
}

func TestRenderer_StatusBreaksOpenLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plain.New(&buf, ndchat.DefaultTheme())

	target := r.NewAssistantTarget()
	target.Append("partial")
	h := r.RenderStatus("still working")
	h.Remove()
	h.Remove()
	target.Append(" more\n")
	r.SetInputEnabled(true)

	assert.Equal(t, "partial\n… still working\n more\n", ansi.Strip(buf.String()))
}

func TestRenderer_StatusHandlesAreDistinct(t *testing.T) {
	t.Parallel()

	r := plain.New(&bytes.Buffer{}, ndchat.DefaultTheme())

	pending := r.RenderPending()
	first := r.RenderStatus("searching")
	second := r.RenderStatus("searching")

	assert.False(t, pending == first)
	assert.False(t, first == second)
	assert.True(t, first == first)
}

func TestRenderer_Tools(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plain.New(&buf, ndchat.DefaultTheme())

	r.RenderToolCalls([]ndchat.ToolCall{{Name: "weather", Arguments: json.RawMessage(`{"city":"Paris"}`)}})
	r.RenderToolResult("weather", "sunny")
	r.RenderToolError("clock", "line one\nline two")

	want := "🔧 weather { \"city\": \"Paris\" }\n" +
		"✓ weather sunny\n" +
		"✗ clock\n  line one\n  line two\n"
	assert.Equal(t, want, ansi.Strip(buf.String()))
}

func TestRenderer_ReplaceWithError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plain.New(&buf, ndchat.DefaultTheme())

	target := r.NewAssistantTarget()
	target.Append("half an ans")
	target.ReplaceWithError("model overloaded")
	r.SetInputEnabled(true)

	assert.Equal(t, "half an ans\n✗ model overloaded\n", ansi.Strip(buf.String()))
}

func TestRenderer_StatusWriter(t *testing.T) {
	t.Parallel()

	var out, info bytes.Buffer
	r := plain.New(&out, ndchat.DefaultTheme(), plain.WithStatusWriter(&info))

	r.RenderUserMessage("q")
	r.RenderStatus("thinking")
	target := r.NewAssistantTarget()
	target.Append("answer")
	r.RenderToolResult("calc", "4")
	r.SetInputEnabled(true)

	assert.Equal(t, "answer\n", ansi.Strip(out.String()))
	assert.Equal(t, "> q\n… thinking\n✓ calc 4\n", ansi.Strip(info.String()))
}

func TestRenderer_Quiet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := plain.New(&buf, ndchat.DefaultTheme(), plain.WithQuiet())

	r.RenderUserMessage("q")
	r.RenderStatus("thinking")
	r.NewAssistantTarget().Append("a")
	r.SetInputEnabled(true)

	assert.Equal(t, "a\n", ansi.Strip(buf.String()))
}

func TestRenderer_Session(t *testing.T) {
	t.Parallel()

	t.Run("streamed turn", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return mock.Chunks(
					`{"type":"start","message":"on it"}`+"\n",
					`{"type":"content","content":"北京"}`+"\n"+`{"type":"con`,
					`tent","content":"晴"}`+"\n",
					`{"type":"end"}`+"\n",
				), nil
			},
		}
		s := ndchat.NewSession(tr, plain.New(&buf, ndchat.DefaultTheme()))

		turn, err := s.Send(context.Background(), "  weather?  ")
		require.NoError(t, err)
		assert.Equal(t, "北京晴", turn.Reply)
		assert.Equal(t, "> weather?\n… on it\n北京晴\n", ansi.Strip(buf.String()))
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		tr := &mock.Transport{
			OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
				return nil, errors.New("refused")
			},
		}
		s := ndchat.NewSession(tr, plain.New(&buf, ndchat.DefaultTheme()))

		turn, err := s.Send(context.Background(), "hi")
		require.NoError(t, err)
		require.Error(t, turn.Err)
		assert.Equal(t, "> hi\n✗ connection error: refused\n", ansi.Strip(buf.String()))
	})
}
