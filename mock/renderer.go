package mock

import "github.com/fwojciec/ndchat"

// Interface compliance checks.
var (
	_ ndchat.Renderer        = (*Renderer)(nil)
	_ ndchat.AssistantTarget = (*AssistantTarget)(nil)
	_ ndchat.StatusHandle    = (*StatusHandle)(nil)
)

// Renderer is a test double for ndchat.Renderer.
// Every function field is optional: unset render methods do nothing and
// unset constructors return fresh no-op handles.
type Renderer struct {
	RenderUserMessageFn  func(text string)
	NewAssistantTargetFn func() ndchat.AssistantTarget
	RenderPendingFn      func() ndchat.StatusHandle
	RenderStatusFn       func(text string) ndchat.StatusHandle
	RenderToolCallsFn    func(tools []ndchat.ToolCall)
	RenderToolResultFn   func(toolName, result string)
	RenderToolErrorFn    func(toolName, errText string)
	SetInputEnabledFn    func(enabled bool)
}

// RenderUserMessage delegates to RenderUserMessageFn.
func (r *Renderer) RenderUserMessage(text string) {
	if r.RenderUserMessageFn != nil {
		r.RenderUserMessageFn(text)
	}
}

// NewAssistantTarget delegates to NewAssistantTargetFn.
func (r *Renderer) NewAssistantTarget() ndchat.AssistantTarget {
	if r.NewAssistantTargetFn == nil {
		return &AssistantTarget{}
	}
	return r.NewAssistantTargetFn()
}

// RenderPending delegates to RenderPendingFn.
func (r *Renderer) RenderPending() ndchat.StatusHandle {
	if r.RenderPendingFn == nil {
		return &StatusHandle{}
	}
	return r.RenderPendingFn()
}

// RenderStatus delegates to RenderStatusFn.
func (r *Renderer) RenderStatus(text string) ndchat.StatusHandle {
	if r.RenderStatusFn == nil {
		return &StatusHandle{}
	}
	return r.RenderStatusFn(text)
}

// RenderToolCalls delegates to RenderToolCallsFn.
func (r *Renderer) RenderToolCalls(tools []ndchat.ToolCall) {
	if r.RenderToolCallsFn != nil {
		r.RenderToolCallsFn(tools)
	}
}

// RenderToolResult delegates to RenderToolResultFn.
func (r *Renderer) RenderToolResult(toolName, result string) {
	if r.RenderToolResultFn != nil {
		r.RenderToolResultFn(toolName, result)
	}
}

// RenderToolError delegates to RenderToolErrorFn.
func (r *Renderer) RenderToolError(toolName, errText string) {
	if r.RenderToolErrorFn != nil {
		r.RenderToolErrorFn(toolName, errText)
	}
}

// SetInputEnabled delegates to SetInputEnabledFn.
func (r *Renderer) SetInputEnabled(enabled bool) {
	if r.SetInputEnabledFn != nil {
		r.SetInputEnabledFn(enabled)
	}
}

// AssistantTarget is a test double for ndchat.AssistantTarget.
type AssistantTarget struct {
	AppendFn           func(text string)
	ReplaceWithErrorFn func(text string)
}

// Append delegates to AppendFn.
func (t *AssistantTarget) Append(text string) {
	if t.AppendFn != nil {
		t.AppendFn(text)
	}
}

// ReplaceWithError delegates to ReplaceWithErrorFn.
func (t *AssistantTarget) ReplaceWithError(text string) {
	if t.ReplaceWithErrorFn != nil {
		t.ReplaceWithErrorFn(text)
	}
}

// StatusHandle is a test double for ndchat.StatusHandle.
type StatusHandle struct {
	RemoveFn func()
}

// Remove delegates to RemoveFn.
func (h *StatusHandle) Remove() {
	if h.RemoveFn != nil {
		h.RemoveFn()
	}
}
