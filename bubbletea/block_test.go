package bubbletea_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/ndchat"
	bt "github.com/fwojciec/ndchat/bubbletea"
	"github.com/fwojciec/ndchat/goldmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStyles() bt.Styles { return bt.NewStyles(ndchat.DefaultTheme()) }

func TestBlockSeparator(t *testing.T) {
	t.Parallel()

	styles := testStyles()
	call := bt.NewToolCallBlock(ndchat.ToolCall{Name: "weather"}, styles)
	result := bt.NewToolResultBlock("weather", "sunny", false, styles)
	status := bt.NewStatusBlock("working", styles)
	text := bt.NewAssistantTextBlock(goldmark.New(ndchat.DefaultTheme()), styles)
	user := bt.NewUserMessageBlock("hi", styles)

	assert.Equal(t, "\n", bt.BlockSeparator(call, result))
	assert.Equal(t, "\n", bt.BlockSeparator(result, call))
	assert.Equal(t, "\n", bt.BlockSeparator(status, call))
	assert.Equal(t, "\n\n", bt.BlockSeparator(user, text))
	assert.Equal(t, "\n\n", bt.BlockSeparator(text, call))
	assert.Equal(t, "\n\n", bt.BlockSeparator(result, text))
}

func TestUserMessageBlock_View(t *testing.T) {
	t.Parallel()

	t.Run("renders prompt and text", func(t *testing.T) {
		t.Parallel()
		view := ansi.Strip(bt.NewUserMessageBlock("hello world", testStyles()).View(80))
		assert.True(t, strings.HasPrefix(view, "> hello world"))
	})

	t.Run("wraps long text under the prompt", func(t *testing.T) {
		t.Parallel()
		long := "short words that keep going and going beyond the viewport width easily"
		view := bt.NewUserMessageBlock(long, testStyles()).View(30)
		lines := strings.Split(view, "\n")
		assert.Greater(t, len(lines), 1)
		for _, l := range lines {
			assert.LessOrEqual(t, lipgloss.Width(l), 30)
		}
		assert.Contains(t, view, "easily")
	})
}

func TestAssistantTextBlock(t *testing.T) {
	t.Parallel()

	md := goldmark.New(ndchat.DefaultTheme())

	t.Run("streams fragments into one markdown view", func(t *testing.T) {
		t.Parallel()
		b := bt.NewAssistantTextBlock(md, testStyles())
		for _, f := range []string{"# Wea", "ther\n\nIt is ", "**sun", "ny**."} {
			b.Append(f)
		}
		assert.Equal(t, "# Weather\n\nIt is **sunny**.", b.Text())
		view := ansi.Strip(b.View(80))
		assert.Contains(t, view, "Weather")
		assert.Contains(t, view, "It is sunny.")
		assert.NotContains(t, view, "**")
	})

	t.Run("rendering matches the whole document at a paragraph boundary", func(t *testing.T) {
		t.Parallel()
		b := bt.NewAssistantTextBlock(md, testStyles())
		b.Append("first paragraph\n\nsecond paragraph")
		assert.Equal(t, md.Render("first paragraph\n\nsecond paragraph", 60), b.View(60))
	})

	t.Run("unclosed code fence renders as code", func(t *testing.T) {
		t.Parallel()
		b := bt.NewAssistantTextBlock(md, testStyles())
		b.Append("intro\n\n```go\nx := 1\n\ny := 2")
		view := ansi.Strip(b.View(80))
		assert.Contains(t, view, "│ x := 1")
		assert.Contains(t, view, "│ y := 2")
	})

	t.Run("error replaces text and later fragments", func(t *testing.T) {
		t.Parallel()
		b := bt.NewAssistantTextBlock(md, testStyles())
		b.Append("partial answer")
		b.ReplaceWithError("model overloaded")
		b.Append("ignored")
		assert.Equal(t, "model overloaded", b.Err())
		view := ansi.Strip(b.View(80))
		assert.Contains(t, view, "model overloaded")
		assert.NotContains(t, view, "partial")
		assert.NotContains(t, view, "ignored")
	})
}

func TestToolCallBlock(t *testing.T) {
	t.Parallel()

	b := bt.NewToolCallBlock(ndchat.ToolCall{Name: "weather", Arguments: json.RawMessage(`{"city":"北京","days":3}`)}, testStyles())
	require.True(t, b.Collapsed())
	collapsed := ansi.Strip(b.View(80))
	assert.Contains(t, collapsed, "weather")
	assert.NotContains(t, collapsed, "北京")

	b.Update(bt.ToggleMsg{})
	expanded := ansi.Strip(b.View(80))
	assert.Contains(t, expanded, `"city": "北京"`)
	assert.Contains(t, expanded, `"days": 3`)
}

func TestToolResultBlock(t *testing.T) {
	t.Parallel()

	t.Run("success starts collapsed with a preview", func(t *testing.T) {
		t.Parallel()
		b := bt.NewToolResultBlock("weather", "sunny\nhumidity 40%", false, testStyles())
		require.True(t, b.Collapsed())
		view := ansi.Strip(b.View(80))
		assert.Contains(t, view, "weather")
		assert.Contains(t, view, "sunny …")
		assert.NotContains(t, view, "humidity")

		b.Update(bt.ToggleMsg{})
		assert.Contains(t, ansi.Strip(b.View(80)), "humidity 40%")
	})

	t.Run("preview is truncated by display width", func(t *testing.T) {
		t.Parallel()
		b := bt.NewToolResultBlock("search", strings.Repeat("天气", 50), false, testStyles())
		view := ansi.Strip(b.View(200))
		assert.Contains(t, view, "…")
		assert.NotContains(t, view, strings.Repeat("天气", 16))
	})

	t.Run("preview keeps grapheme clusters whole", func(t *testing.T) {
		t.Parallel()
		b := bt.NewToolResultBlock("emoji", strings.Repeat("👍🏽", 40), false, testStyles())
		view := ansi.Strip(b.View(200))
		assert.Contains(t, view, "…")
		assert.Equal(t, strings.Count(view, "👍"), strings.Count(view, "🏽"))
		assert.Less(t, strings.Count(view, "👍"), 40)
	})

	t.Run("errors stay expanded", func(t *testing.T) {
		t.Parallel()
		b := bt.NewToolResultBlock("weather", "timeout\nretry later", true, testStyles())
		assert.True(t, b.IsError())
		assert.False(t, b.Collapsed())
		b.Update(bt.ToggleMsg{})
		assert.False(t, b.Collapsed())
		assert.Contains(t, ansi.Strip(b.View(80)), "retry later")
	})
}

func TestStatusBlock(t *testing.T) {
	t.Parallel()

	b := bt.NewStatusBlock("calling weather", testStyles())
	assert.Equal(t, "calling weather", b.Text())
	assert.NotNil(t, b.Tick())
	assert.Contains(t, ansi.Strip(b.View(80)), "calling weather")
}

func TestNewStyles(t *testing.T) {
	t.Parallel()

	styles := bt.NewStyles(ndchat.DefaultTheme())
	assert.Equal(t, lipgloss.Color("4"), styles.UserMsg.GetForeground())
	assert.True(t, styles.UserMsg.GetBold())
	assert.Equal(t, lipgloss.Color("6"), styles.Status.GetForeground())
	assert.Equal(t, lipgloss.Color("3"), styles.ToolCall.GetForeground())
	assert.Equal(t, lipgloss.Color("1"), styles.Error.GetForeground())
	assert.Equal(t, lipgloss.Color("2"), styles.Success.GetForeground())
	assert.Equal(t, lipgloss.Color("8"), styles.Muted.GetForeground())
	assert.True(t, styles.Muted.GetFaint())

	noColor := bt.NewStyles(ndchat.Theme{UserMsg: -1})
	assert.Equal(t, lipgloss.NoColor{}, noColor.UserMsg.GetForeground())
}
