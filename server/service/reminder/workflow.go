// Package reminder implements the user-facing reminder flows: creating a
// reminder from a free-form request, listing upcoming reminders and deleting
// one by its listed ordinal. Every flow runs as a conversation session so the
// exchange can be confirmed, retried and purged.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/internal/apperr"
	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/quotes"
	"github.com/hrygo/shuvi/plugin/timeparse"
	"github.com/hrygo/shuvi/server/service/conversation"
	"github.com/hrygo/shuvi/server/timezone"
	"github.com/hrygo/shuvi/store"
)

// Restarter lets the workflow kick the delivery loop after writes.
type Restarter interface {
	Restart(ctx context.Context)
}

// Requirements lists every quote path the reminder flows consume.
func Requirements() quotes.Requirements {
	return quotes.Requirements{
		Lists: []string{
			"abort/happy",
			"reminder/setQuestion",
			"reminder/setAbort",
			"reminder/setDone",
			"reminder/show/title",
			"reminder/show/entry",
			"reminder/show/hint",
			"reminder/deletion/summary",
			"reminder/deletion/abort",
			"reminder/deletion/done",
			"timezone/firstTime",
			"timezone/info",
			"timezone/selection/start",
			"timezone/selection/didYouMean",
			"timezone/selection/otherResults",
			"timezone/selection/mostSimilar",
			"timezone/selection/andMore",
			"timezone/selection/chooseOne",
			"timezone/selection/hint",
			"timezone/selection/done",
			"errors/indexOutOfBounds",
		},
	}
}

// Workflow wires the reminder flows to their collaborators.
type Workflow struct {
	store         *store.Store
	quotes        *quotes.Server
	conversations *conversation.Service
	parser        *timeparse.Parser
	watchdog      Restarter
	profile       *profile.Profile
	logger        *slog.Logger
}

func NewWorkflow(
	st *store.Store,
	q *quotes.Server,
	conversations *conversation.Service,
	parser *timeparse.Parser,
	watchdog Restarter,
	p *profile.Profile,
	logger *slog.Logger,
) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		store:         st,
		quotes:        q,
		conversations: conversations,
		parser:        parser,
		watchdog:      watchdog,
		profile:       p,
		logger:        logger,
	}
}

// Create parses request into a due instant and memo, confirms the summary
// with the requester, resolves their timezone (asking first-time users) and
// persists the reminder. The delivery loop restarts so a new earliest due
// time takes effect immediately.
func (wf *Workflow) Create(ctx context.Context, msg *chat.Message, request string) error {
	session := wf.conversations.Open(msg.UserID, msg.ChannelID)

	defaultLoc, err := timezone.ParseTimezone(wf.profile.DefaultTimezone)
	if err != nil {
		return err
	}
	// The requester's zone is not known yet; the summary is rendered against
	// the service default and the request is re-anchored once it is.
	requestedAt := time.Now()
	parsed, err := wf.parser.Parse(request, requestedAt.In(defaultLoc))
	if err != nil {
		return err
	}

	question, err := wf.quotes.Textf("reminder/setQuestion",
		wf.profile.BotName, timezone.FormatDate(parsed.At), timezone.FormatClock(parsed.At), parsed.Memo)
	if err != nil {
		return err
	}
	abort, err := wf.quotes.Text("reminder/setAbort")
	if err != nil {
		return err
	}
	accepted, _, err := session.Confirm(ctx, conversation.ConfirmOptions{
		Question:  chat.Text(question),
		Rejection: chat.Text(abort),
	})
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}

	user, err := wf.ensureUser(ctx, session, msg)
	if err != nil {
		return err
	}
	loc, err := timezone.ParseTimezone(user.Timezone)
	if err != nil {
		return err
	}

	// Re-run the parse with the same request instant read in the user's
	// zone: an absolute wall clock lands on their local reading, a relative
	// offset stays the exact same instant.
	resolved, err := wf.parser.Parse(request, requestedAt.In(loc))
	if err != nil {
		return err
	}
	dueAt := resolved.At
	if !dueAt.After(time.Now()) {
		return &apperr.ParseError{Cause: apperr.CauseTimestampInPast, Goal: apperr.GoalReminderSet, Input: request}
	}

	now := time.Now()
	created, err := wf.store.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    msg.UserID,
		ChannelID: msg.ChannelID,
		DueTs:     dueAt.Unix(),
		Memo:      parsed.Memo,
		CreatedTs: now.Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to persist reminder")
	}
	wf.logger.Info("reminder created",
		"reminder", created.ID, "user", msg.UserID, "due", dueAt.Format(time.RFC3339))

	if err := session.SendQuote(ctx, "reminder/setDone",
		wf.profile.BotName, timezone.FormatDate(dueAt), timezone.FormatClock(dueAt), parsed.Memo); err != nil {
		return err
	}

	wf.watchdog.Restart(ctx)
	return nil
}

// List posts the upcoming reminders visible to the requester. channelIDs
// scopes a server context to its channels; nil scopes to the requester's own
// reminders (private context).
func (wf *Workflow) List(ctx context.Context, msg *chat.Message, channelIDs []string) error {
	reminders, err := wf.visibleReminders(ctx, msg, channelIDs)
	if err != nil {
		return err
	}

	loc := wf.requesterLocation(ctx, msg.UserID)
	lines := make([]string, 0, len(reminders))
	for i, rem := range reminders {
		entry, err := wf.quotes.Textf("reminder/show/entry",
			i+1, wf.describeReminder(rem, loc), wf.ownerName(ctx, rem.UserID))
		if err != nil {
			return err
		}
		lines = append(lines, entry)
	}

	title, err := wf.quotes.Text("reminder/show/title")
	if err != nil {
		return err
	}
	hint, err := wf.quotes.Text("reminder/show/hint")
	if err != nil {
		return err
	}
	_, err = wf.gateway().Send(ctx, msg.ChannelID, chat.Outgoing{
		Title:  title,
		Text:   strings.Join(lines, "\n"),
		Footer: hint,
	})
	return err
}

// Delete removes the requester's reminder at the listed ordinal after a
// confirmation. The whole exchange is purged from the channel afterwards.
func (wf *Workflow) Delete(ctx context.Context, msg *chat.Message, ordinal string, channelIDs []string) error {
	n, err := strconv.Atoi(strings.TrimSpace(ordinal))
	if err != nil {
		return &apperr.InvalidArgumentError{
			Cause: apperr.CauseNotANumber, Goal: apperr.GoalReminderDel, Arguments: []string{ordinal},
		}
	}

	reminders, err := wf.visibleReminders(ctx, msg, channelIDs)
	if err != nil {
		return err
	}
	if n < 1 || n > len(reminders) {
		return &apperr.IndexOutOfBoundsError{Index: n - 1, Length: len(reminders)}
	}
	rem := reminders[n-1]
	if rem.UserID != msg.UserID {
		return &apperr.UnauthorizedError{
			Cause:      apperr.CauseIllegalDeletion,
			AccessorID: msg.UserID,
			OwnerID:    rem.UserID,
			ReminderID: rem.ID,
		}
	}

	session := wf.conversations.Open(msg.UserID, msg.ChannelID)
	loc := wf.requesterLocation(ctx, msg.UserID)
	dueAt := rem.DueAt().In(loc)
	question, err := wf.quotes.Textf("reminder/deletion/summary",
		timezone.FormatDate(dueAt), timezone.FormatClock(dueAt), rem.Memo)
	if err != nil {
		return err
	}
	abort, err := wf.quotes.Text("reminder/deletion/abort")
	if err != nil {
		return err
	}
	accepted, _, err := session.Confirm(ctx, conversation.ConfirmOptions{
		Question:  chat.Text(question),
		Rejection: chat.Text(abort),
	})
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}

	if err := wf.store.DeleteReminder(ctx, rem.ID); err != nil {
		return errors.Wrap(err, "failed to delete reminder")
	}
	wf.logger.Info("reminder deleted", "reminder", rem.ID, "user", msg.UserID)

	if err := session.SendQuote(ctx, "reminder/deletion/done"); err != nil {
		return err
	}
	// Clean the confirmation exchange out of the channel again.
	if err := session.Purge(ctx); err != nil {
		wf.logger.Warn("failed to purge deletion exchange", "err", err)
	}

	wf.watchdog.Restart(ctx)
	return nil
}

func (wf *Workflow) visibleReminders(ctx context.Context, msg *chat.Message, channelIDs []string) ([]*store.Reminder, error) {
	// Past-due rows can linger until the next delivery attempt; they are not
	// listed and never shift the ordinals.
	dueAfter := time.Now().Unix()
	find := &store.FindReminder{DueAfter: &dueAfter}
	if len(channelIDs) > 0 {
		find.ChannelIDs = channelIDs
	} else {
		find.UserID = &msg.UserID
	}
	reminders, err := wf.store.ListReminders(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reminders")
	}
	if len(reminders) == 0 {
		return nil, &apperr.ReminderNotFoundError{Cause: apperr.CauseEmptyList}
	}
	return reminders, nil
}

func (wf *Workflow) describeReminder(rem *store.Reminder, loc *time.Location) string {
	dueAt := rem.DueAt().In(loc)
	return fmt.Sprintf("%s %s (%s)", timezone.FormatDate(dueAt), timezone.FormatClock(dueAt), rem.Memo)
}

func (wf *Workflow) requesterLocation(ctx context.Context, userID string) *time.Location {
	tz := wf.profile.DefaultTimezone
	if user, err := wf.store.GetUser(ctx, userID); err == nil && user != nil && user.Timezone != "" {
		tz = user.Timezone
	}
	loc, err := timezone.ParseTimezone(tz)
	if err != nil {
		return timezone.UTC
	}
	return loc
}

func (wf *Workflow) ownerName(ctx context.Context, userID string) string {
	if user, err := wf.store.GetUser(ctx, userID); err == nil && user != nil && user.Name != "" {
		return user.Name
	}
	return userID
}

func (wf *Workflow) gateway() chat.Gateway {
	return wf.conversations.Gateway()
}
