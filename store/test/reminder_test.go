package test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shuvi/store"
)

func createTestReminder(ctx context.Context, t *testing.T, ts *store.Store, userID, channelID string, dueIn time.Duration, memo string) *store.Reminder {
	t.Helper()
	reminder, err := ts.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChannelID: channelID,
		DueTs:     time.Now().Add(dueIn).Unix(),
		Memo:      memo,
	})
	require.NoError(t, err)
	return reminder
}

func TestReminderOrdering(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	createTestReminder(ctx, t, ts, "alice", "general", 3*time.Hour, "third")
	createTestReminder(ctx, t, ts, "alice", "general", 1*time.Hour, "first")
	createTestReminder(ctx, t, ts, "bob", "general", 2*time.Hour, "second")

	list, err := ts.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Memo)
	assert.Equal(t, "second", list[1].Memo)
	assert.Equal(t, "third", list[2].Memo)
}

func TestReminderFilters(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	createTestReminder(ctx, t, ts, "alice", "general", time.Hour, "a")
	createTestReminder(ctx, t, ts, "alice", "random", time.Hour, "b")
	createTestReminder(ctx, t, ts, "bob", "general", time.Hour, "c")

	alice := "alice"
	list, err := ts.ListReminders(ctx, &store.FindReminder{UserID: &alice})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = ts.ListReminders(ctx, &store.FindReminder{ChannelIDs: []string{"general"}})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = ts.ListReminders(ctx, &store.FindReminder{ChannelIDs: []string{"general", "random"}})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCheckNextDue(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	next, err := ts.CheckNextDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	createTestReminder(ctx, t, ts, "alice", "general", 30*time.Second, "soon")
	createTestReminder(ctx, t, ts, "alice", "general", time.Hour, "later")

	next, err = ts.CheckNextDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	// The +1s fudge keeps deliveries from landing a fraction too early.
	assert.InDelta(t, 31, next.Remaining, 2)

	reminder, err := ts.GetNextDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, reminder)
	assert.Equal(t, "soon", reminder.Memo)
}

func TestDeleteReminder(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	reminder := createTestReminder(ctx, t, ts, "alice", "general", time.Hour, "gone")
	require.NoError(t, ts.DeleteReminder(ctx, reminder.ID))

	list, err := ts.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteExpiredReminders(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	createTestReminder(ctx, t, ts, "alice", "general", -72*time.Hour, "long gone")
	createTestReminder(ctx, t, ts, "alice", "general", -time.Hour, "just missed")
	createTestReminder(ctx, t, ts, "alice", "general", time.Hour, "upcoming")

	deleted, err := ts.DeleteExpiredReminders(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	list, err := ts.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := ts.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = ts.CreateUser(ctx, &store.User{ID: "alice", Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, ts.UpdateUserTimezone(ctx, "alice", "Europe/Vienna"))

	user, err = ts.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Europe/Vienna", user.Timezone)

	// Creating again must not clobber the chosen timezone.
	_, err = ts.CreateUser(ctx, &store.User{ID: "alice", Name: "Alice"})
	require.NoError(t, err)
	user, err = ts.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Vienna", user.Timezone)
}
