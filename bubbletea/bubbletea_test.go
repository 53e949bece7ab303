package bubbletea_test

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ndchat"
	bt "github.com/fwojciec/ndchat/bubbletea"
	"github.com/fwojciec/ndchat/mock"
	"github.com/stretchr/testify/require"
)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, sender bt.Sender, opts ...bt.Option) bt.Model {
	t.Helper()
	return initModelWithSize(t, sender, 80, 24, opts...)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, sender bt.Sender, width, height int, opts ...bt.Option) bt.Model {
	t.Helper()
	m := bt.New(sender, bt.NewRenderer(), ndchat.DefaultTheme(), opts...)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msgs ...tea.Msg) bt.Model {
	t.Helper()
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		model, ok := updated.(bt.Model)
		require.True(t, ok)
		m = model
	}
	return m
}

// senderFunc adapts a function to bt.Sender.
type senderFunc func(ctx context.Context, message string) (ndchat.Turn, error)

func (f senderFunc) Send(ctx context.Context, message string) (ndchat.Turn, error) {
	return f(ctx, message)
}

// nopSender completes every turn immediately without rendering.
var nopSender = senderFunc(func(_ context.Context, message string) (ndchat.Turn, error) {
	return ndchat.Turn{ID: "t", Message: message}, nil
})

// streamSession wires a real session to the renderer, answering every turn
// with the given NDJSON records.
func streamSession(r *bt.Renderer, records ...string) *ndchat.Session {
	body := strings.Join(records, "\n") + "\n"
	tr := &mock.Transport{
		OpenFn: func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
			// Odd chunk sizes split records and characters.
			var chunks []string
			for i := 0; i < len(body); i += 7 {
				chunks = append(chunks, body[i:min(i+7, len(body))])
			}
			return mock.Chunks(chunks...), nil
		},
	}
	return ndchat.NewSession(tr, r)
}
