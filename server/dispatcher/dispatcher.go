// Package dispatcher turns inbound chat messages into command invocations and
// is the single place where recoverable errors become localized user-facing
// replies. Anything unclassified is reported to the operator and answered
// with a generic apology.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/internal/apperr"
	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/quotes"
	"github.com/hrygo/shuvi/server/reporter"
	"github.com/hrygo/shuvi/server/service/reminder"
)

// Requirements lists every quote path the dispatcher consumes.
func Requirements() quotes.Requirements {
	return quotes.Requirements{
		Lists: []string{
			"help/title",
			"help/hint",
			"errors/dateNotFound",
			"errors/timeNotFound",
			"errors/incorrectDate",
			"errors/incorrectTime",
			"errors/pastTimestamp",
			"errors/noReminders",
			"errors/indexOutOfBounds",
			"errors/unauthorized",
			"errors/fruitless",
			"errors/notANumber",
			"errors/unknownCommand",
		},
	}
}

// Dispatcher routes prefixed commands to the reminder workflow.
type Dispatcher struct {
	profile  *profile.Profile
	quotes   *quotes.Server
	gateway  chat.Gateway
	workflow *reminder.Workflow
	reporter *reporter.Reporter
	logger   *slog.Logger
}

func New(
	p *profile.Profile,
	q *quotes.Server,
	gateway chat.Gateway,
	workflow *reminder.Workflow,
	rep *reporter.Reporter,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		profile:  p,
		quotes:   q,
		gateway:  gateway,
		workflow: workflow,
		reporter: rep,
		logger:   logger,
	}
}

// Dispatch handles one inbound message. Messages without the command prefix
// are ignored; command failures never propagate past this boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *chat.Message) {
	if !strings.HasPrefix(msg.Text, d.profile.CommandPrefix) {
		return
	}
	body := strings.TrimSpace(strings.TrimPrefix(msg.Text, d.profile.CommandPrefix))
	if body == "" {
		return
	}

	command := body
	rest := ""
	if idx := strings.IndexAny(body, " \t"); idx >= 0 {
		command, rest = body[:idx], strings.TrimSpace(body[idx+1:])
	}

	var err error
	switch strings.ToLower(command) {
	case "remindme":
		err = d.remindme(ctx, msg, rest)
	case "timezone":
		err = d.workflow.Timezone(ctx, msg)
	case "help":
		err = d.help(ctx, msg)
	default:
		err = &apperr.UnknownCommandError{Command: command, Goal: apperr.GoalUnknown}
	}
	if err != nil {
		d.handleError(ctx, msg, err)
	}
}

// remindme dispatches the reminder subcommands. Flags may appear anywhere in
// the argument list; without one the remainder is a creation request.
func (d *Dispatcher) remindme(ctx context.Context, msg *chat.Message, rest string) error {
	args := strings.Fields(rest)
	for i, arg := range args {
		switch strings.ToLower(arg) {
		case "-s", "-show":
			return d.workflow.List(ctx, msg, d.scope(msg))
		case "-d", "-delete":
			ordinal := ""
			if i+1 < len(args) {
				ordinal = args[i+1]
			}
			return d.workflow.Delete(ctx, msg, ordinal, d.scope(msg))
		}
	}
	return d.workflow.Create(ctx, msg, rest)
}

func (d *Dispatcher) help(ctx context.Context, msg *chat.Message) error {
	title, err := d.quotes.Textf("help/title", d.profile.BotName)
	if err != nil {
		return err
	}
	hint, err := d.quotes.Text("help/hint")
	if err != nil {
		return err
	}
	prefix := d.profile.CommandPrefix
	lines := []string{
		fmt.Sprintf("%sremindme <when> \"<memo>\"", prefix),
		fmt.Sprintf("%sremindme -show", prefix),
		fmt.Sprintf("%sremindme -delete <number>", prefix),
		fmt.Sprintf("%stimezone", prefix),
		fmt.Sprintf("%shelp", prefix),
	}
	_, err = d.gateway.Send(ctx, msg.ChannelID, chat.Outgoing{
		Title:  title,
		Text:   strings.Join(lines, "\n"),
		Footer: hint,
	})
	return err
}

// scope decides whose reminders a show/delete sees: a private channel scopes
// to the requester, everything else to the channel itself.
func (d *Dispatcher) scope(msg *chat.Message) []string {
	if strings.HasPrefix(msg.ChannelID, "dm:") {
		return nil
	}
	return []string{msg.ChannelID}
}

// handleError maps every recoverable error kind onto one localized reply.
// Unclassified failures go to the operator; the user gets an apology.
func (d *Dispatcher) handleError(ctx context.Context, msg *chat.Message, err error) {
	path, args := d.classify(err)
	if path == "" {
		d.reporter.Report(ctx, err, "user", msg.UserID, "channel", msg.ChannelID, "input", msg.Text)
		d.reporter.Apologize(ctx, msg.ChannelID)
		return
	}

	d.logger.Info("command failed", "err", err, "user", msg.UserID)
	text, qErr := d.quotes.Textf(path, args...)
	if qErr != nil {
		d.reporter.Report(ctx, qErr, "path", path)
		return
	}
	if _, sendErr := d.gateway.Send(ctx, msg.ChannelID, chat.Text(text)); sendErr != nil {
		d.reporter.Report(ctx, sendErr, "channel", msg.ChannelID)
	}
}

func (d *Dispatcher) classify(err error) (path string, args []any) {
	bot := d.profile.BotName

	var parseErr *apperr.ParseError
	if errors.As(err, &parseErr) {
		switch parseErr.Cause {
		case apperr.CauseDateNotFound:
			return "errors/dateNotFound", []any{bot}
		case apperr.CauseTimeNotFound:
			return "errors/timeNotFound", []any{bot}
		case apperr.CauseIncorrectDate:
			return "errors/incorrectDate", []any{bot}
		case apperr.CauseIncorrectTime:
			return "errors/incorrectTime", []any{bot}
		case apperr.CauseTimestampInPast:
			return "errors/pastTimestamp", []any{bot}
		}
		return "", nil
	}

	var argErr *apperr.InvalidArgumentError
	if errors.As(err, &argErr) && argErr.Cause == apperr.CauseNotANumber {
		return "errors/notANumber", nil
	}
	var nfErr *apperr.ReminderNotFoundError
	if errors.As(err, &nfErr) {
		return "errors/noReminders", nil
	}
	var oobErr *apperr.IndexOutOfBoundsError
	if errors.As(err, &oobErr) {
		return "errors/indexOutOfBounds", []any{oobErr.Length}
	}
	var authErr *apperr.UnauthorizedError
	if errors.As(err, &authErr) {
		return "errors/unauthorized", nil
	}
	var selErr *apperr.FruitlessSelectionError
	if errors.As(err, &selErr) {
		return "errors/fruitless", nil
	}
	var cmdErr *apperr.UnknownCommandError
	if errors.As(err, &cmdErr) {
		return "errors/unknownCommand", []any{bot}
	}
	return "", nil
}
