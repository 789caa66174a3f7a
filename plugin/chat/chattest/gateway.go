// Package chattest provides a scripted in-memory chat gateway for tests.
package chattest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hrygo/shuvi/plugin/chat"
)

// Reply scripts one AwaitMessage outcome.
type Reply struct {
	Text    string
	Timeout bool
}

// Sent records one outbound message.
type Sent struct {
	ChannelID string
	Out       chat.Outgoing
}

// Gateway is a chat.Gateway that answers AwaitMessage from a scripted queue
// and records everything sent or deleted. The zero value is usable.
type Gateway struct {
	mu      sync.Mutex
	nextID  int
	queue   []Reply
	Sent    []Sent
	Deleted map[string][]string

	// ServerChannels lists channel IDs that resolve to themselves; all other
	// channels resolve to the user's private channel "dm:<userID>".
	ServerChannels map[string]bool
}

// Script appends replies to the queue.
func (g *Gateway) Script(replies ...Reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(g.queue, replies...)
}

// ScriptText appends plain text replies to the queue.
func (g *Gateway) ScriptText(texts ...string) {
	for _, text := range texts {
		g.Script(Reply{Text: text})
	}
}

func (g *Gateway) Send(_ context.Context, channelID string, out chat.Outgoing) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Sent = append(g.Sent, Sent{ChannelID: channelID, Out: out})
	g.nextID++
	return strconv.Itoa(g.nextID), nil
}

func (g *Gateway) AwaitMessage(_ context.Context, userID, channelID string, _ time.Duration) (*chat.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return nil, chat.ErrAwaitTimeout
	}
	reply := g.queue[0]
	g.queue = g.queue[1:]
	if reply.Timeout {
		return nil, chat.ErrAwaitTimeout
	}
	g.nextID++
	return &chat.Message{
		ID:        strconv.Itoa(g.nextID),
		UserID:    userID,
		ChannelID: channelID,
		Text:      reply.Text,
	}, nil
}

func (g *Gateway) DeleteMessages(_ context.Context, channelID string, messageIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Deleted == nil {
		g.Deleted = make(map[string][]string)
	}
	g.Deleted[channelID] = append(g.Deleted[channelID], messageIDs...)
	return nil
}

func (g *Gateway) ResolveChannel(_ context.Context, channelID, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ServerChannels[channelID] {
		return channelID, nil
	}
	return "dm:" + userID, nil
}

// Texts returns the plain text of every sent message, in order.
func (g *Gateway) Texts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	texts := make([]string, 0, len(g.Sent))
	for _, s := range g.Sent {
		texts = append(texts, s.Out.Text)
	}
	return texts
}
