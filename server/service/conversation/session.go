// Package conversation implements the question/answer primitives the reminder
// flows are built from: yes/no confirmation with a bounded retry loop, and
// free-text prompts. A session tracks every message it exchanged so the whole
// exchange can be purged from the channel afterwards.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/quotes"
)

const (
	// DefaultConfirmTimeout bounds the wait for a yes/no reply.
	DefaultConfirmTimeout = 30 * time.Second
	// DefaultRespondTimeout bounds the wait for a free-text reply.
	DefaultRespondTimeout = 120 * time.Second
	// DefaultMaxRetries bounds how often an off-topic reply is re-asked.
	DefaultMaxRetries = 5
)

// Requirements lists every quote path the conversation layer consumes.
func Requirements() quotes.Requirements {
	return quotes.Requirements{
		Lists: []string{
			"interaction/affirmations",
			"interaction/rejections",
			"interaction/retry",
			"interaction/timeout",
			"interaction/enough",
		},
	}
}

// Service opens conversation sessions. The affirmation and rejection keyword
// sets are loaded once; sessions share them.
type Service struct {
	gateway chat.Gateway
	quotes  *quotes.Server
	botName string
	logger  *slog.Logger

	affirmations map[string]bool
	rejections   map[string]bool
}

// NewService loads the keyword sets and returns a session factory.
func NewService(gateway chat.Gateway, q *quotes.Server, botName string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	affirmations, err := loadKeywordSet(q, "interaction/affirmations")
	if err != nil {
		return nil, err
	}
	rejections, err := loadKeywordSet(q, "interaction/rejections")
	if err != nil {
		return nil, err
	}
	return &Service{
		gateway:      gateway,
		quotes:       q,
		botName:      botName,
		logger:       logger,
		affirmations: affirmations,
		rejections:   rejections,
	}, nil
}

func loadKeywordSet(q *quotes.Server, path string) (map[string]bool, error) {
	words, err := q.List(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[strings.ToLower(word)] = true
	}
	return set, nil
}

// Gateway exposes the underlying chat gateway for one-off sends that need no
// session bookkeeping.
func (s *Service) Gateway() chat.Gateway { return s.gateway }

// Open starts a session with one user in one channel.
func (s *Service) Open(userID, channelID string) *Session {
	id := shortuuid.New()
	return &Session{
		service:   s,
		id:        id,
		userID:    userID,
		channelID: channelID,
		logger:    s.logger.With("session", id, "user", userID),
	}
}

// Session is one conversation with one user in one channel. Not safe for
// concurrent use; a session belongs to a single command invocation.
type Session struct {
	service   *Service
	id        string
	userID    string
	channelID string
	logger    *slog.Logger

	mu    sync.Mutex
	trail []string
}

// ConfirmOptions parameterizes a yes/no question.
type ConfirmOptions struct {
	Question chat.Outgoing
	// Rejection is sent when the user explicitly declines. A timeout or an
	// exhausted retry bound counts as declining but stays silent beyond its
	// own notice.
	Rejection chat.Outgoing
	// Timeout per reply; DefaultConfirmTimeout when zero.
	Timeout time.Duration
	// Retries bounds off-topic replies; DefaultMaxRetries when zero.
	Retries int
}

// RespondOptions parameterizes a free-text prompt.
type RespondOptions struct {
	Question chat.Outgoing
	// Timeout for the reply; DefaultRespondTimeout when zero.
	Timeout time.Duration
	// Hint is sent alongside the question once Attempt reaches HintAttempt.
	Hint        string
	Attempt     int
	HintAttempt int
}

func (s *Session) ID() string { return s.id }

// Send posts a message and records it in the session trail.
func (s *Session) Send(ctx context.Context, out chat.Outgoing) error {
	msgID, err := s.service.gateway.Send(ctx, s.channelID, out)
	if err != nil {
		return errors.Wrap(err, "failed to send session message")
	}
	s.record(msgID)
	return nil
}

// SendQuote formats the localized text at path and sends it.
func (s *Session) SendQuote(ctx context.Context, path string, args ...any) error {
	text, err := s.service.quotes.Textf(path, args...)
	if err != nil {
		return err
	}
	return s.Send(ctx, chat.Text(text))
}

// Confirm asks a yes/no question and interprets the reply against the
// localized affirmation/rejection sets. An off-topic reply draws a retry
// prompt and the question again, up to the retry bound; the final off-topic
// reply draws the drop notice instead. A silent user counts as rejection and
// reports zero messages used. messagesUsed is otherwise the number of
// messages the exchange added to the channel.
func (s *Session) Confirm(ctx context.Context, opts ConfirmOptions) (accepted bool, messagesUsed int, err error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	before := s.trailLen()
	for attempt := 1; ; attempt++ {
		if err := s.Send(ctx, opts.Question); err != nil {
			return false, s.trailLen() - before, err
		}

		reply, err := s.await(ctx, timeout)
		if errors.Is(err, chat.ErrAwaitTimeout) {
			if err := s.SendQuote(ctx, "interaction/timeout"); err != nil {
				return false, s.trailLen() - before, err
			}
			s.logger.Info("confirmation timed out", "attempt", attempt)
			return false, 0, nil
		}
		if err != nil {
			return false, s.trailLen() - before, err
		}

		answer := strings.ToLower(strings.TrimSpace(reply.Text))
		switch {
		case s.service.affirmations[answer]:
			return true, s.trailLen() - before, nil
		case s.service.rejections[answer]:
			if opts.Rejection.Text != "" || opts.Rejection.Title != "" {
				if err := s.Send(ctx, opts.Rejection); err != nil {
					return false, s.trailLen() - before, err
				}
			}
			return false, s.trailLen() - before, nil
		}

		if attempt >= retries {
			break
		}
		if err := s.SendQuote(ctx, "interaction/retry", s.service.botName); err != nil {
			return false, s.trailLen() - before, err
		}
	}

	if err := s.SendQuote(ctx, "interaction/enough", s.service.botName); err != nil {
		return false, s.trailLen() - before, err
	}
	s.logger.Info("confirmation retries exhausted")
	return false, s.trailLen() - before, nil
}

// Respond asks a free-text question and returns the reply. ok is false when
// the user stayed silent; that is not an error.
func (s *Session) Respond(ctx context.Context, opts RespondOptions) (reply string, ok bool, err error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRespondTimeout
	}

	if err := s.Send(ctx, opts.Question); err != nil {
		return "", false, err
	}
	if opts.Hint != "" && opts.HintAttempt > 0 && opts.Attempt >= opts.HintAttempt {
		if err := s.Send(ctx, chat.Text(opts.Hint)); err != nil {
			return "", false, err
		}
	}

	msg, err := s.await(ctx, timeout)
	if errors.Is(err, chat.ErrAwaitTimeout) {
		if err := s.SendQuote(ctx, "interaction/timeout"); err != nil {
			return "", false, err
		}
		s.logger.Info("prompt timed out")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(msg.Text), true, nil
}

// Purge deletes every message the session exchanged, where the platform
// supports bulk deletion.
func (s *Session) Purge(ctx context.Context) error {
	s.mu.Lock()
	trail := s.trail
	s.trail = nil
	s.mu.Unlock()

	if len(trail) == 0 {
		return nil
	}
	return s.service.gateway.DeleteMessages(ctx, s.channelID, trail)
}

func (s *Session) await(ctx context.Context, timeout time.Duration) (*chat.Message, error) {
	msg, err := s.service.gateway.AwaitMessage(ctx, s.userID, s.channelID, timeout)
	if err != nil {
		return nil, err
	}
	s.record(msg.ID)
	return msg, nil
}

func (s *Session) record(msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trail = append(s.trail, msgID)
}

func (s *Session) trailLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trail)
}
