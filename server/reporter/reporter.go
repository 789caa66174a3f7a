// Package reporter routes failures to the operator. Every report is logged
// with full context; when an operator channel is configured, a summary is
// posted there as well so problems surface without log access.
package reporter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/quotes"
)

// Requirements lists every quote path the reporter consumes.
func Requirements() quotes.Requirements {
	return quotes.Requirements{Lists: []string{"apology"}}
}

// Reporter posts failure reports to the operator channel and logs them.
type Reporter struct {
	gateway         chat.Gateway
	quotes          *quotes.Server
	logger          *slog.Logger
	botName         string
	operatorChannel string
}

func New(gateway chat.Gateway, q *quotes.Server, profile *profile.Profile, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		gateway:         gateway,
		quotes:          q,
		logger:          logger,
		botName:         profile.BotName,
		operatorChannel: profile.OperatorChannel,
	}
}

// Report logs err with the given context pairs and notifies the operator
// channel. Reporting never fails the caller; a broken operator channel is
// only logged.
func (r *Reporter) Report(ctx context.Context, err error, args ...any) {
	r.logger.Error("failure reported", append([]any{"err", err}, args...)...)

	if r.operatorChannel == "" {
		return
	}
	// %+v renders the wrapped stack trace where one is attached.
	summary := fmt.Sprintf("failure: %+v", err)
	for i := 0; i+1 < len(args); i += 2 {
		summary += fmt.Sprintf("\n%v: %v", args[i], args[i+1])
	}
	if _, sendErr := r.gateway.Send(ctx, r.operatorChannel, chat.Text(summary)); sendErr != nil {
		r.logger.Error("failed to notify operator channel", "err", sendErr)
	}
}

// Apologize sends the generic user-facing apology into the given channel.
// Used when an unclassified failure aborts a user's command.
func (r *Reporter) Apologize(ctx context.Context, channelID string) {
	text, err := r.quotes.Textf("apology", r.botName)
	if err != nil {
		r.logger.Error("failed to render apology", "err", err)
		return
	}
	if _, err := r.gateway.Send(ctx, channelID, chat.Text(text)); err != nil {
		r.logger.Error("failed to send apology", "err", err, "channel", channelID)
	}
}
