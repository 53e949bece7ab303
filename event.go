package ndchat

import "encoding/json"

// Event is a sealed interface representing one decoded record of the
// assistant's NDJSON stream. Each wire kind has its own type; transport
// failures come from ChunkSource.Next, never from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventStart signals that the endpoint accepted the message.
type EventStart struct {
	Message string
}

func (EventStart) event() {}

// EventToolCalls lists the tools the assistant decided to invoke.
type EventToolCalls struct {
	Tools []ToolCall
}

func (EventToolCalls) event() {}

// EventToolExecuting signals that a tool is running.
type EventToolExecuting struct {
	ToolName string
	Message  string
}

func (EventToolExecuting) event() {}

// EventToolResult carries the text a tool returned.
type EventToolResult struct {
	ToolName string
	Result   string
}

func (EventToolResult) event() {}

// EventToolError carries the failure a tool reported.
type EventToolError struct {
	ToolName string
	Error    string
}

func (EventToolError) event() {}

// EventGenerating signals that the final answer is being generated.
type EventGenerating struct {
	Message string
}

func (EventGenerating) event() {}

// EventContent is a fragment of the assistant's answer.
type EventContent struct {
	Content string
}

func (EventContent) event() {}

// EventEnd marks the end of the answer.
type EventEnd struct {
	Message string
}

func (EventEnd) event() {}

// EventError is a terminal error reported by the endpoint.
type EventError struct {
	Error string
}

func (EventError) event() {}

// EventUnknown is a well-formed record with an unrecognized type.
// It is decoded rather than rejected so newer endpoints keep working.
type EventUnknown struct {
	Type string
	Raw  json.RawMessage
}

func (EventUnknown) event() {}

// ToolCall describes a single tool invocation announced by EventToolCalls.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// Interface compliance checks.
var (
	_ Event = EventStart{}
	_ Event = EventToolCalls{}
	_ Event = EventToolExecuting{}
	_ Event = EventToolResult{}
	_ Event = EventToolError{}
	_ Event = EventGenerating{}
	_ Event = EventContent{}
	_ Event = EventEnd{}
	_ Event = EventError{}
	_ Event = EventUnknown{}
)
