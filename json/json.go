// Package json persists chat transcripts as versioned JSON documents.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/ndchat"
)

// envelope is the v1 wire format for a persisted transcript.
type envelope struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []turnDTO `json:"turns"`
}

// MarshalTranscript serializes a Transcript to JSON in v1 envelope format.
func MarshalTranscript(t ndchat.Transcript) ([]byte, error) {
	env := envelope{
		Version:   1,
		ID:        t.ID,
		Endpoint:  t.Endpoint,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Turns:     make([]turnDTO, len(t.Turns)),
	}
	for i, turn := range t.Turns {
		env.Turns[i] = marshalTurn(turn)
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalTranscript deserializes a Transcript from JSON in v1 envelope
// format.
func UnmarshalTranscript(data []byte) (ndchat.Transcript, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ndchat.Transcript{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return ndchat.Transcript{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	turns := make([]ndchat.Turn, len(env.Turns))
	for i, dto := range env.Turns {
		turn, err := unmarshalTurn(dto)
		if err != nil {
			return ndchat.Transcript{}, fmt.Errorf("turn %d: %w", i, err)
		}
		turns[i] = turn
	}
	return ndchat.Transcript{
		ID:        env.ID,
		Endpoint:  env.Endpoint,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
		Turns:     turns,
	}, nil
}

// Save writes a Transcript to a JSON file, creating parent directories as
// needed. The file is replaced atomically.
func Save(path string, t ndchat.Transcript) error {
	data, err := MarshalTranscript(t)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Transcript from a JSON file.
func Load(path string) (ndchat.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ndchat.Transcript{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalTranscript(data)
}

// turnDTO is the JSON representation of a Turn. The terminal error is kept
// as text plus a kind so loaded errors still match the ndchat sentinels.
type turnDTO struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	Tools     []toolDTO `json:"tools,omitempty"`
	Error     *string   `json:"error,omitempty"`
	ErrorKind *string   `json:"error_kind,omitempty"`
	Malformed int       `json:"malformed,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

type toolDTO struct {
	Name      string           `json:"name"`
	Arguments *json.RawMessage `json:"arguments,omitempty"`
	Output    *string          `json:"output,omitempty"`
	IsError   bool             `json:"is_error,omitempty"`
	Finished  bool             `json:"finished"`
}

// Error kinds stored alongside error text.
const (
	kindEndpoint  = "endpoint"
	kindTransport = "transport"
	kindCanceled  = "canceled"
	kindOther     = "other"
)

func marshalTurn(t ndchat.Turn) turnDTO {
	dto := turnDTO{
		ID:        t.ID,
		Message:   t.Message,
		Reply:     t.Reply,
		Malformed: t.Malformed,
		StartedAt: t.StartedAt,
		EndedAt:   t.EndedAt,
	}
	for _, ta := range t.Tools {
		tool := toolDTO{Name: ta.Name, IsError: ta.IsError, Finished: ta.Finished}
		if len(ta.Arguments) > 0 {
			args := ta.Arguments
			tool.Arguments = &args
		}
		if ta.Finished {
			out := ta.Output
			tool.Output = &out
		}
		dto.Tools = append(dto.Tools, tool)
	}
	if t.Err != nil {
		msg := t.Err.Error()
		kind := errorKind(t.Err)
		dto.Error = &msg
		dto.ErrorKind = &kind
	}
	return dto
}

func unmarshalTurn(dto turnDTO) (ndchat.Turn, error) {
	if dto.ID == "" {
		return ndchat.Turn{}, errors.New("missing turn id")
	}
	t := ndchat.Turn{
		ID:        dto.ID,
		Message:   dto.Message,
		Reply:     dto.Reply,
		Malformed: dto.Malformed,
		StartedAt: dto.StartedAt,
		EndedAt:   dto.EndedAt,
	}
	for _, tool := range dto.Tools {
		ta := ndchat.ToolActivity{Name: tool.Name, IsError: tool.IsError, Finished: tool.Finished}
		if tool.Arguments != nil {
			ta.Arguments = *tool.Arguments
		}
		if tool.Output != nil {
			ta.Output = *tool.Output
		}
		t.Tools = append(t.Tools, ta)
	}
	if dto.Error != nil {
		kind := kindOther
		if dto.ErrorKind != nil {
			kind = *dto.ErrorKind
		}
		err, ok := loadError(kind, *dto.Error)
		if !ok {
			return ndchat.Turn{}, fmt.Errorf("unknown error kind: %q", kind)
		}
		t.Err = err
	}
	return t, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ndchat.ErrEndpoint):
		return kindEndpoint
	case errors.Is(err, ndchat.ErrTransport):
		return kindTransport
	case errors.Is(err, context.Canceled):
		return kindCanceled
	default:
		return kindOther
	}
}

// loadedError restores a persisted error with its original text.
type loadedError struct {
	msg  string
	kind error
}

func (e *loadedError) Error() string { return e.msg }
func (e *loadedError) Unwrap() error { return e.kind }

func loadError(kind, msg string) (error, bool) {
	var sentinel error
	switch kind {
	case kindEndpoint:
		sentinel = ndchat.ErrEndpoint
	case kindTransport:
		sentinel = ndchat.ErrTransport
	case kindCanceled:
		sentinel = context.Canceled
	case kindOther:
		return errors.New(msg), true
	default:
		return nil, false
	}
	return &loadedError{msg: msg, kind: sentinel}, true
}
