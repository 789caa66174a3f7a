package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shuvi/plugin/chat"
)

func TestRunDeliversToOnMessage(t *testing.T) {
	ctx := context.Background()
	g := New(strings.NewReader("hello\n\n.remindme -show\n"), &bytes.Buffer{})

	var got []*chat.Message
	g.OnMessage = func(_ context.Context, msg *chat.Message) {
		got = append(got, msg)
	}

	require.NoError(t, g.Run(ctx))
	// Blank lines are skipped.
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, ".remindme -show", got[1].Text)
	assert.Equal(t, UserID, got[0].UserID)
	assert.Equal(t, ChannelID, got[0].ChannelID)
}

func TestAwaitClaimsBeforeOnMessage(t *testing.T) {
	ctx := context.Background()
	in, feed := io.Pipe()
	g := New(in, &bytes.Buffer{})

	unclaimed := make(chan *chat.Message, 1)
	g.OnMessage = func(_ context.Context, msg *chat.Message) {
		unclaimed <- msg
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Run(ctx)
	}()

	type awaitResult struct {
		msg *chat.Message
		err error
	}
	result := make(chan awaitResult, 1)
	go func() {
		msg, err := g.AwaitMessage(ctx, UserID, ChannelID, time.Second)
		result <- awaitResult{msg, err}
	}()

	// Give the waiter a moment to register before feeding input.
	time.Sleep(20 * time.Millisecond)
	_, err := feed.Write([]byte("yes\n"))
	require.NoError(t, err)
	res := <-result
	require.NoError(t, res.err)
	assert.Equal(t, "yes", res.msg.Text)

	// With no waiter left the next line falls through to OnMessage.
	_, err = feed.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, feed.Close())
	require.NoError(t, <-done)
	select {
	case msg := <-unclaimed:
		assert.Equal(t, "hello", msg.Text)
	default:
		t.Fatal("expected the unclaimed line to reach OnMessage")
	}
}

func TestAwaitTimesOut(t *testing.T) {
	ctx := context.Background()
	g := New(strings.NewReader(""), &bytes.Buffer{})

	_, err := g.AwaitMessage(ctx, UserID, ChannelID, 10*time.Millisecond)
	assert.ErrorIs(t, err, chat.ErrAwaitTimeout)
}

func TestSendRendersRichMessages(t *testing.T) {
	ctx := context.Background()
	out := &bytes.Buffer{}
	g := New(strings.NewReader(""), out)

	id, err := g.Send(ctx, ChannelID, chat.Outgoing{
		Title:  "Upcoming reminders",
		Text:   "1) tea",
		Footer: "hint",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rendered := out.String()
	assert.Contains(t, rendered, "== Upcoming reminders ==")
	assert.Contains(t, rendered, "1) tea")
	assert.Contains(t, rendered, "-- hint")
}
