package ndchat

// Renderer displays a conversation. Implementations own layout, styling and
// escaping; the session only decides what is shown and when.
type Renderer interface {
	RenderUserMessage(text string)
	// NewAssistantTarget creates an empty destination for streamed text.
	NewAssistantTarget() AssistantTarget
	// RenderPending shows the indicator displayed while waiting for the
	// stream to open.
	RenderPending() StatusHandle
	// RenderStatus shows an ephemeral status line.
	RenderStatus(text string) StatusHandle
	RenderToolCalls(tools []ToolCall)
	RenderToolResult(toolName, result string)
	RenderToolError(toolName, errText string)
	// SetInputEnabled toggles the input affordances while a turn runs.
	SetInputEnabled(enabled bool)
}

// AssistantTarget accumulates the assistant's answer for one turn.
type AssistantTarget interface {
	// Append adds a fragment after the text already shown.
	Append(text string)
	// ReplaceWithError discards the shown text and displays an error instead.
	ReplaceWithError(text string)
}

// StatusHandle removes an ephemeral indicator. Remove is idempotent.
// Handles are compared with ==, so implementations must be comparable
// (typically a pointer).
type StatusHandle interface {
	Remove()
}
