package ndchat

import (
	"encoding/json"
	"time"
)

// Turn records one user message and the response stream it provoked.
type Turn struct {
	ID      string
	Message string
	// Reply is the concatenation of content fragments in stream order. An
	// endpoint error event discards the fragments received before it.
	Reply string
	Tools []ToolActivity
	// Err is the terminal failure of the turn, if any: a transport error,
	// a mid-stream read error, cancellation, or an endpoint error event.
	Err error
	// Malformed counts records that could not be decoded and were skipped.
	Malformed int
	StartedAt time.Time
	EndedAt   time.Time
}

// ToolActivity tracks one tool invocation reported during a turn.
type ToolActivity struct {
	Name      string
	Arguments json.RawMessage
	Output    string
	IsError   bool
	Finished  bool
}

// finishTool records the outcome for the oldest unfinished call of name.
// Outcomes for tools never announced are appended as new activities.
func (t *Turn) finishTool(name, output string, isError bool) {
	for i := range t.Tools {
		if t.Tools[i].Name == name && !t.Tools[i].Finished {
			t.Tools[i].Output = output
			t.Tools[i].IsError = isError
			t.Tools[i].Finished = true
			return
		}
	}
	t.Tools = append(t.Tools, ToolActivity{Name: name, Output: output, IsError: isError, Finished: true})
}

// Transcript is the persisted history of a chat session.
type Transcript struct {
	ID        string
	Endpoint  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Turns     []Turn
}

// Add appends a completed turn. Turns without an ID (rejected sends) are
// ignored.
func (t *Transcript) Add(turn Turn) {
	if turn.ID == "" {
		return
	}
	t.Turns = append(t.Turns, turn)
	if turn.EndedAt.After(t.UpdatedAt) {
		t.UpdatedAt = turn.EndedAt
	}
}
