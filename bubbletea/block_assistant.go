package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ndchat/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock renders the streamed reply of one turn as markdown.
// Text up to the last paragraph break is stable: it is rendered once per
// width and cached, so each fragment only re-renders the open paragraph.
type AssistantTextBlock struct {
	md      *goldmark.Renderer
	styles  Styles
	content strings.Builder
	err     *ErrorBlock

	stable     string
	stableView map[int]string
}

// NewAssistantTextBlock creates an empty block for streamed text.
func NewAssistantTextBlock(md *goldmark.Renderer, styles Styles) *AssistantTextBlock {
	return &AssistantTextBlock{md: md, styles: styles, stableView: make(map[int]string)}
}

// Append adds a fragment after the text already received.
func (b *AssistantTextBlock) Append(text string) {
	if b.err != nil {
		return
	}
	b.content.WriteString(text)
	b.advanceStable()
}

// ReplaceWithError discards the received text and shows text as an error.
func (b *AssistantTextBlock) ReplaceWithError(text string) {
	b.content.Reset()
	b.stable = ""
	clear(b.stableView)
	b.err = NewErrorBlock(text, b.styles)
}

// Text returns the raw markdown received so far.
func (b *AssistantTextBlock) Text() string { return b.content.String() }

// Err returns the error shown in place of the text, if any.
func (b *AssistantTextBlock) Err() string {
	if b.err == nil {
		return ""
	}
	return b.err.Text()
}

func (b *AssistantTextBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	if b.err != nil {
		return b.err.View(width)
	}
	stable := b.renderStable(width)
	open := b.openText()
	if hasUnclosedFence(open) {
		// Close the fence for display so a partial code block renders as code.
		open += "\n```"
	}
	rendered := b.md.Render(open, width)
	switch {
	case strings.TrimSpace(rendered) == "":
		return stable
	case stable == "":
		return rendered
	default:
		return strings.TrimRight(stable, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
	}
}

// advanceStable moves the stable boundary to the last paragraph break that
// is not inside a fenced code block.
func (b *AssistantTextBlock) advanceStable() {
	raw := b.content.String()
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.stable {
				b.stable = candidate
				clear(b.stableView)
			}
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderStable(width int) string {
	if b.stable == "" {
		return ""
	}
	if v, ok := b.stableView[width]; ok {
		return v
	}
	v := b.md.Render(b.stable, width)
	b.stableView[width] = v
	return v
}

func (b *AssistantTextBlock) openText() string {
	raw := b.content.String()
	if b.stable == "" {
		return raw
	}
	return strings.TrimPrefix(raw, b.stable+"\n\n")
}

// hasUnclosedFence reports whether s has an odd number of ``` markers.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
