package reminder

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/hrygo/shuvi/internal/apperr"
	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/server/service/conversation"
	"github.com/hrygo/shuvi/server/timezone"
	"github.com/hrygo/shuvi/store"
)

const (
	// maxSelectionRounds bounds the search-refine loop before giving up.
	maxSelectionRounds = 5
	// maxScoredZones caps how many fuzzy candidates are considered at all.
	maxScoredZones = 20
	// listedZones is how many candidates the numbered list shows, plus ties.
	listedZones = 5
	// hintRound is the selection round from which the numeric-reply hint is shown.
	hintRound = 3
)

// Timezone handles the timezone command: first-time users run the setup flow,
// users with a zone can review and change it.
func (wf *Workflow) Timezone(ctx context.Context, msg *chat.Message) error {
	session := wf.conversations.Open(msg.UserID, msg.ChannelID)

	user, err := wf.store.GetUser(ctx, msg.UserID)
	if err != nil {
		return err
	}
	if user == nil || user.Timezone == "" {
		_, err := wf.ensureUser(ctx, session, msg)
		return err
	}

	question, err := wf.quotes.Textf("timezone/info", user.Timezone)
	if err != nil {
		return err
	}
	keep, err := wf.quotes.Text("abort/happy")
	if err != nil {
		return err
	}
	change, _, err := session.Confirm(ctx, conversation.ConfirmOptions{
		Question:  chat.Text(question),
		Rejection: chat.Text(keep),
	})
	if err != nil {
		return err
	}
	if !change {
		return nil
	}

	tz, err := wf.selectTimezone(ctx, session)
	if err != nil {
		return err
	}
	if err := wf.store.UpdateUserTimezone(ctx, msg.UserID, tz); err != nil {
		return err
	}
	return session.SendQuote(ctx, "timezone/selection/done", tz)
}

// ensureUser returns the requester's user record, walking first-time users
// through timezone setup. The record always carries a timezone afterwards.
func (wf *Workflow) ensureUser(ctx context.Context, session *conversation.Session, msg *chat.Message) (*store.User, error) {
	user, err := wf.store.GetUser(ctx, msg.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.Timezone != "" {
		return user, nil
	}

	question, err := wf.quotes.Textf("timezone/firstTime", wf.profile.BotName, wf.profile.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	useDefault, _, err := session.Confirm(ctx, conversation.ConfirmOptions{Question: chat.Text(question)})
	if err != nil {
		return nil, err
	}

	tz := wf.profile.DefaultTimezone
	if !useDefault {
		if tz, err = wf.selectTimezone(ctx, session); err != nil {
			return nil, err
		}
	}

	if user == nil {
		name := msg.DisplayName
		if name == "" {
			name = msg.UserID
		}
		user, err = wf.store.CreateUser(ctx, &store.User{ID: msg.UserID, Name: name, Timezone: tz})
		if err != nil {
			return nil, err
		}
	} else {
		if err := wf.store.UpdateUserTimezone(ctx, msg.UserID, tz); err != nil {
			return nil, err
		}
		user.Timezone = tz
	}

	if err := session.SendQuote(ctx, "timezone/selection/done", tz); err != nil {
		return nil, err
	}
	return user, nil
}

// selectTimezone runs the fuzzy zone search: the user names a place, the
// catalog is scored against it, a decisive best match is offered directly,
// otherwise a numbered shortlist is shown to pick from or to refine against.
func (wf *Workflow) selectTimezone(ctx context.Context, session *conversation.Session) (string, error) {
	start, err := wf.quotes.Textf("timezone/selection/start", wf.profile.BotName)
	if err != nil {
		return "", err
	}
	query, ok, err := session.Respond(ctx, conversation.RespondOptions{Question: chat.Text(start)})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &apperr.FruitlessSelectionError{Cause: apperr.CauseSelectionExhausted, UserID: session.ID()}
	}

	for round := 1; round <= maxSelectionRounds; round++ {
		scored := scoreZones(query)
		if len(scored) == 0 {
			// An empty catalog cannot happen; treat it as exhausted.
			break
		}

		if decisive(scored) {
			question, err := wf.quotes.Textf("timezone/selection/didYouMean", scored[0].zone)
			if err != nil {
				return "", err
			}
			others, err := wf.quotes.Text("timezone/selection/otherResults")
			if err != nil {
				return "", err
			}
			accepted, _, err := session.Confirm(ctx, conversation.ConfirmOptions{
				Question:  chat.Text(question),
				Rejection: chat.Text(others),
			})
			if err != nil {
				return "", err
			}
			if accepted {
				return scored[0].zone, nil
			}
		}

		candidates, truncated := shortlist(scored)
		listing, err := wf.renderShortlist(candidates, truncated)
		if err != nil {
			return "", err
		}
		if err := session.Send(ctx, chat.Text(listing)); err != nil {
			return "", err
		}

		chooseOne, err := wf.quotes.Text("timezone/selection/chooseOne")
		if err != nil {
			return "", err
		}
		hint, err := wf.quotes.Text("timezone/selection/hint")
		if err != nil {
			return "", err
		}
		reply, ok, err := session.Respond(ctx, conversation.RespondOptions{
			Question:    chat.Text(chooseOne),
			Hint:        hint,
			Attempt:     round,
			HintAttempt: hintRound,
		})
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &apperr.FruitlessSelectionError{Cause: apperr.CauseSelectionExhausted, UserID: session.ID()}
		}

		if n, convErr := strconv.Atoi(strings.TrimSpace(reply)); convErr == nil {
			if n >= 1 && n <= len(candidates) {
				return candidates[n-1].zone, nil
			}
			if err := session.SendQuote(ctx, "errors/indexOutOfBounds", len(candidates)); err != nil {
				return "", err
			}
			continue
		}

		// Anything else is a refined search term.
		query = reply
	}

	return "", &apperr.FruitlessSelectionError{Cause: apperr.CauseSelectionExhausted, UserID: session.ID()}
}

func (wf *Workflow) renderShortlist(candidates []scoredZone, truncated bool) (string, error) {
	header, err := wf.quotes.Text("timezone/selection/mostSimilar")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(header)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d) %s\n", i+1, c.zone)
	}
	if truncated {
		andMore, err := wf.quotes.Text("timezone/selection/andMore")
		if err != nil {
			return "", err
		}
		b.WriteString(andMore)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type scoredZone struct {
	zone  string
	score int
}

// scoreZones ranks the catalog against the query by partial-ratio similarity,
// best first. Ties keep catalog order so the ranking is stable.
func scoreZones(query string) []scoredZone {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	zones := timezone.Catalog()
	scored := make([]scoredZone, 0, len(zones))
	for _, zone := range zones {
		scored = append(scored, scoredZone{
			zone:  zone,
			score: fuzzy.PartialRatio(query, strings.ToLower(zone)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxScoredZones {
		scored = scored[:maxScoredZones]
	}
	return scored
}

// decisive reports whether the top match is unambiguous: either it is the
// only perfect match, or it clearly outscores the runner-up.
func decisive(scored []scoredZone) bool {
	if len(scored) == 1 {
		return true
	}
	top, second := scored[0].score, scored[1].score
	return (top == 100 && second < 100) || float64(top)*0.8 > float64(second)
}

// shortlist returns the top candidates plus any entries tied with the last
// listed score, and whether the scored set extends beyond the list.
func shortlist(scored []scoredZone) ([]scoredZone, bool) {
	if len(scored) <= listedZones {
		return scored, false
	}
	cut := listedZones
	for cut < len(scored) && scored[cut].score == scored[listedZones-1].score {
		cut++
	}
	return scored[:cut], cut < len(scored)
}
