// Package chat defines the messaging gateway contract the reminder service is
// built against. Platform bindings (and the local console binding) implement
// Gateway; everything above it only ever talks in channel and user IDs.
package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrAwaitTimeout is returned by AwaitMessage when no matching message
// arrives within the given timeout.
var ErrAwaitTimeout = errors.New("timed out waiting for a reply")

// Message is an inbound chat message.
type Message struct {
	ID          string
	UserID      string
	ChannelID   string
	DisplayName string
	Text        string
}

// Field is one name/value block of a rich message.
type Field struct {
	Name  string
	Value string
}

// Outgoing is a message to be sent. Title/Fields/Footer render as a rich
// display object on platforms that support one; plain text elsewhere.
type Outgoing struct {
	Text   string
	Title  string
	Fields []Field
	Footer string
	// TTL deletes the message again after the duration, if supported.
	TTL time.Duration
}

// Gateway is the chat platform boundary.
type Gateway interface {
	// Send posts a message into a channel and returns its message ID.
	Send(ctx context.Context, channelID string, out Outgoing) (string, error)

	// AwaitMessage waits for the next message of the given user in the given
	// channel. Returns ErrAwaitTimeout when the timeout elapses first.
	AwaitMessage(ctx context.Context, userID, channelID string, timeout time.Duration) (*Message, error)

	// DeleteMessages bulk-deletes messages from a channel, where supported.
	DeleteMessages(ctx context.Context, channelID string, messageIDs []string) error

	// ResolveChannel maps a stored channel ID to a deliverable one. If the
	// channel is not reachable (e.g. it was a private chat), it resolves to
	// the user's private channel, creating one if necessary.
	ResolveChannel(ctx context.Context, channelID, userID string) (string, error)
}

// Text wraps a plain string into an Outgoing.
func Text(text string) Outgoing {
	return Outgoing{Text: text}
}
