package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/chat/chattest"
	"github.com/hrygo/shuvi/plugin/quotes"
	"github.com/hrygo/shuvi/plugin/timeparse"
	"github.com/hrygo/shuvi/server/reporter"
	"github.com/hrygo/shuvi/server/service/conversation"
	"github.com/hrygo/shuvi/server/service/reminder"
	"github.com/hrygo/shuvi/store"
	"github.com/hrygo/shuvi/store/test"
)

type noopRestarter struct{}

func (noopRestarter) Restart(context.Context) {}

func newTestDispatcher(t *testing.T, ctx context.Context, gateway *chattest.Gateway) (*Dispatcher, *store.Store) {
	t.Helper()

	st := test.NewTestingStore(ctx, t)

	q, err := quotes.Load("")
	require.NoError(t, err)
	require.NoError(t, q.Validate(
		Requirements(),
		reminder.Requirements(),
		conversation.Requirements(),
		timeparse.Requirements(),
		reporter.Requirements(),
	))

	p := &profile.Profile{BotName: "Shuvi", CommandPrefix: ".", DefaultTimezone: "Europe/Berlin"}
	conversations, err := conversation.NewService(gateway, q, p.BotName, nil)
	require.NoError(t, err)
	parser, err := timeparse.New(q)
	require.NoError(t, err)

	rep := reporter.New(gateway, q, p, nil)
	workflow := reminder.NewWorkflow(st, q, conversations, parser, noopRestarter{}, p, nil)
	return New(p, q, gateway, workflow, rep, nil), st
}

func inbound(text, channelID string) *chat.Message {
	return &chat.Message{ID: "m1", UserID: "u1", ChannelID: channelID, DisplayName: "Rem", Text: text}
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, _ := newTestDispatcher(t, ctx, gateway)

	d.Dispatch(ctx, inbound("hello there", "c1"))
	d.Dispatch(ctx, inbound(".", "c1"))

	assert.Empty(t, gateway.Sent)
}

func TestDispatchUnknownCommand(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, _ := newTestDispatcher(t, ctx, gateway)

	d.Dispatch(ctx, inbound(".sing", "c1"))

	require.Len(t, gateway.Sent, 1)
	assert.Contains(t, gateway.Sent[0].Out.Text, "Shuvi")
	assert.Contains(t, gateway.Sent[0].Out.Text, "command")
}

func TestDispatchCreateReminder(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, st := newTestDispatcher(t, ctx, gateway)
	_, err := st.CreateUser(ctx, &store.User{ID: "u1", Name: "Rem", Timezone: "Europe/Berlin"})
	require.NoError(t, err)
	gateway.ScriptText("y")

	d.Dispatch(ctx, inbound(`.remindme in 2 hours "tea"`, "c1"))

	reminders, err := st.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "tea", reminders[0].Memo)
}

func TestDispatchParseErrorBecomesLocalizedReply(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, _ := newTestDispatcher(t, ctx, gateway)

	d.Dispatch(ctx, inbound(".remindme please", "c1"))

	require.Len(t, gateway.Sent, 1)
	assert.Contains(t, gateway.Sent[0].Out.Text, "date")
}

func TestDispatchShowEmpty(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, _ := newTestDispatcher(t, ctx, gateway)

	d.Dispatch(ctx, inbound(".remindme -show", "c1"))

	require.Len(t, gateway.Sent, 1)
	assert.Contains(t, gateway.Sent[0].Out.Text, "no upcoming reminders")
}

func TestDispatchShowScopesChannel(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, st := newTestDispatcher(t, ctx, gateway)
	_, err := st.CreateReminder(ctx, &store.Reminder{
		ID: uuid.NewString(), UserID: "u2", ChannelID: "c1",
		DueTs: time.Now().Add(time.Hour).Unix(), Memo: "standup", CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	_, err = st.CreateReminder(ctx, &store.Reminder{
		ID: uuid.NewString(), UserID: "u1", ChannelID: "elsewhere",
		DueTs: time.Now().Add(time.Hour).Unix(), Memo: "private", CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	// In a server channel only that channel's reminders show.
	d.Dispatch(ctx, inbound(".remindme -s", "c1"))
	require.Len(t, gateway.Sent, 1)
	assert.Contains(t, gateway.Sent[0].Out.Text, "standup")
	assert.NotContains(t, gateway.Sent[0].Out.Text, "private")

	// In a private channel the requester's own reminders show.
	d.Dispatch(ctx, inbound(".remindme -show", "dm:u1"))
	require.Len(t, gateway.Sent, 2)
	assert.Contains(t, gateway.Sent[1].Out.Text, "private")
	assert.NotContains(t, gateway.Sent[1].Out.Text, "standup")
}

func TestDispatchDeleteMissingOrdinal(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, st := newTestDispatcher(t, ctx, gateway)
	_, err := st.CreateReminder(ctx, &store.Reminder{
		ID: uuid.NewString(), UserID: "u1", ChannelID: "c1",
		DueTs: time.Now().Add(time.Hour).Unix(), Memo: "tea", CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	d.Dispatch(ctx, inbound(".remindme -delete", "c1"))

	require.Len(t, gateway.Sent, 1)
	assert.Contains(t, gateway.Sent[0].Out.Text, "number")
}

func TestDispatchHelp(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	d, _ := newTestDispatcher(t, ctx, gateway)

	d.Dispatch(ctx, inbound(".help", "c1"))

	require.Len(t, gateway.Sent, 1)
	assert.Contains(t, gateway.Sent[0].Out.Title, "Shuvi")
	assert.Contains(t, gateway.Sent[0].Out.Text, ".remindme")
	assert.Contains(t, gateway.Sent[0].Out.Text, ".timezone")
}
