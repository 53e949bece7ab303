package ndchat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire discriminators.
const (
	TypeStart         = "start"
	TypeToolCalls     = "tool_calls"
	TypeToolExecuting = "tool_executing"
	TypeToolResult    = "tool_result"
	TypeToolError     = "tool_error"
	TypeGenerating    = "generating"
	TypeContent       = "content"
	TypeEnd           = "end"
	TypeError         = "error"
)

// wireEvent is the union of all fields any record kind may carry.
type wireEvent struct {
	Type     string         `json:"type"`
	Message  string         `json:"message,omitempty"`
	Tools    []wireToolCall `json:"tools,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Result   string         `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Content  string         `json:"content,omitempty"`
}

type wireToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeEvent decodes one record into its Event variant. A record that is not
// a JSON object with a string "type" field yields an error wrapping
// ErrMalformedRecord. Unrecognized types decode to EventUnknown.
func DecodeEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedRecord)
	}

	switch w.Type {
	case TypeStart:
		return EventStart{Message: w.Message}, nil
	case TypeToolCalls:
		tools := make([]ToolCall, len(w.Tools))
		for i, t := range w.Tools {
			tools[i] = ToolCall{Name: t.Name, Arguments: t.Arguments}
		}
		return EventToolCalls{Tools: tools}, nil
	case TypeToolExecuting:
		return EventToolExecuting{ToolName: w.ToolName, Message: w.Message}, nil
	case TypeToolResult:
		return EventToolResult{ToolName: w.ToolName, Result: w.Result}, nil
	case TypeToolError:
		return EventToolError{ToolName: w.ToolName, Error: w.Error}, nil
	case TypeGenerating:
		return EventGenerating{Message: w.Message}, nil
	case TypeContent:
		return EventContent{Content: w.Content}, nil
	case TypeEnd:
		return EventEnd{Message: w.Message}, nil
	case TypeError:
		return EventError{Error: w.Error}, nil
	default:
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		return EventUnknown{Type: w.Type, Raw: raw}, nil
	}
}

// EncodeEvent returns the newline-terminated wire form of evt.
func EncodeEvent(evt Event) ([]byte, error) {
	var w wireEvent
	switch e := evt.(type) {
	case EventStart:
		w = wireEvent{Type: TypeStart, Message: e.Message}
	case EventToolCalls:
		w = wireEvent{Type: TypeToolCalls, Tools: make([]wireToolCall, len(e.Tools))}
		for i, t := range e.Tools {
			args := t.Arguments
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			w.Tools[i] = wireToolCall{Name: t.Name, Arguments: args}
		}
	case EventToolExecuting:
		w = wireEvent{Type: TypeToolExecuting, ToolName: e.ToolName, Message: e.Message}
	case EventToolResult:
		w = wireEvent{Type: TypeToolResult, ToolName: e.ToolName, Result: e.Result}
	case EventToolError:
		w = wireEvent{Type: TypeToolError, ToolName: e.ToolName, Error: e.Error}
	case EventGenerating:
		w = wireEvent{Type: TypeGenerating, Message: e.Message}
	case EventContent:
		w = wireEvent{Type: TypeContent, Content: e.Content}
	case EventEnd:
		w = wireEvent{Type: TypeEnd, Message: e.Message}
	case EventError:
		w = wireEvent{Type: TypeError, Error: e.Error}
	case EventUnknown:
		if len(e.Raw) > 0 {
			var buf bytes.Buffer
			if err := json.Compact(&buf, e.Raw); err != nil {
				return nil, fmt.Errorf("encode %s: %w", e.Type, err)
			}
			buf.WriteByte('\n')
			return buf.Bytes(), nil
		}
		w = wireEvent{Type: e.Type}
	default:
		return nil, fmt.Errorf("encode: unsupported event %T", evt)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", w.Type, err)
	}
	return append(data, '\n'), nil
}

// FormatArguments renders tool arguments as indented JSON. Arguments that
// are not valid JSON are returned verbatim.
func FormatArguments(args json.RawMessage) string {
	if len(bytes.TrimSpace(args)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, args, "", "  "); err != nil {
		return string(args)
	}
	return buf.String()
}
