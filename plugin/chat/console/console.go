// Package console binds the chat gateway to stdin/stdout so the service can
// be driven from a terminal without a chat platform account.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hrygo/shuvi/plugin/chat"
)

const (
	// ChannelID is the single pseudo channel of a console session.
	ChannelID = "console"
	// UserID identifies the person typing at the terminal.
	UserID = "operator"
)

type waiter struct {
	userID    string
	channelID string
	ch        chan *chat.Message
}

// Gateway implements chat.Gateway over a line-based reader/writer pair.
type Gateway struct {
	in  io.Reader
	out io.Writer

	limiter *chat.RateLimiter

	mu      sync.Mutex
	nextID  int
	waiters []*waiter

	// OnMessage receives every inbound message no waiter claimed.
	OnMessage func(ctx context.Context, msg *chat.Message)
}

// New creates a console gateway reading messages from in and printing to out.
func New(in io.Reader, out io.Writer) *Gateway {
	return &Gateway{
		in:      in,
		out:     out,
		limiter: chat.NewRateLimiter(10, 20),
	}
}

// Run pumps input lines until the reader is exhausted or ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(g.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		msg := &chat.Message{
			ID:          g.newID(),
			UserID:      UserID,
			ChannelID:   ChannelID,
			DisplayName: UserID,
			Text:        text,
		}
		if w := g.claimWaiter(msg); w != nil {
			w.ch <- msg
			continue
		}
		if g.OnMessage != nil {
			g.OnMessage(ctx, msg)
		}
	}
	return scanner.Err()
}

func (g *Gateway) Send(ctx context.Context, channelID string, out chat.Outgoing) (string, error) {
	if err := g.limiter.Wait(ctx, channelID); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if out.Title != "" {
		fmt.Fprintf(g.out, "== %s ==\n", out.Title)
	}
	if out.Text != "" {
		fmt.Fprintln(g.out, out.Text)
	}
	for _, field := range out.Fields {
		fmt.Fprintf(g.out, "%s\n    %s\n", field.Name, field.Value)
	}
	if out.Footer != "" {
		fmt.Fprintf(g.out, "-- %s\n", out.Footer)
	}
	return g.newIDLocked(), nil
}

func (g *Gateway) AwaitMessage(ctx context.Context, userID, channelID string, timeout time.Duration) (*chat.Message, error) {
	w := &waiter{userID: userID, channelID: channelID, ch: make(chan *chat.Message, 1)}
	g.mu.Lock()
	g.waiters = append(g.waiters, w)
	g.mu.Unlock()
	defer g.removeWaiter(w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-timer.C:
		return nil, chat.ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeleteMessages is a no-op: a terminal has no message history to redact.
func (g *Gateway) DeleteMessages(_ context.Context, channelID string, messageIDs []string) error {
	slog.Debug("console gateway cannot delete messages", "channel", channelID, "count", len(messageIDs))
	return nil
}

// ResolveChannel always resolves to the console channel.
func (g *Gateway) ResolveChannel(_ context.Context, _, _ string) (string, error) {
	return ChannelID, nil
}

func (g *Gateway) claimWaiter(msg *chat.Message) *waiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, w := range g.waiters {
		if w.userID == msg.UserID && w.channelID == msg.ChannelID {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return w
		}
	}
	return nil
}

func (g *Gateway) removeWaiter(target *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, w := range g.waiters {
		if w == target {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}

func (g *Gateway) newID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.newIDLocked()
}

func (g *Gateway) newIDLocked() string {
	g.nextID++
	return strconv.Itoa(g.nextID)
}
