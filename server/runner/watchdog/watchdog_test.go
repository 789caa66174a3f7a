package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/plugin/chat/chattest"
	"github.com/hrygo/shuvi/plugin/quotes"
	"github.com/hrygo/shuvi/server/reporter"
	"github.com/hrygo/shuvi/store"
	"github.com/hrygo/shuvi/store/test"
)

// napRecorder replaces the real sleep so tests run instantly.
type napRecorder struct {
	mu       sync.Mutex
	naps     []time.Duration
	sleepRet bool
}

func (n *napRecorder) sleep(_ context.Context, d time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.naps = append(n.naps, d)
	return n.sleepRet
}

func (n *napRecorder) recorded() []time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]time.Duration(nil), n.naps...)
}

func newTestWatchdog(t *testing.T, ctx context.Context, gateway *chattest.Gateway) (*Watchdog, *store.Store, *napRecorder) {
	st := test.NewTestingStore(ctx, t)

	q, err := quotes.Load("")
	require.NoError(t, err)
	require.NoError(t, q.Validate(Requirements()))

	rep := reporter.New(gateway, q, &profile.Profile{BotName: "Shuvi"}, nil)
	w := New(st, gateway, q, rep, nil)
	naps := &napRecorder{sleepRet: true}
	w.sleep = naps.sleep
	return w, st, naps
}

func TestWatchdogDeliversAndDeletes(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	w, st, _ := newTestWatchdog(t, ctx, gateway)

	_, err := st.CreateUser(ctx, &store.User{ID: "u1", Name: "Rem"})
	require.NoError(t, err)
	_, err = st.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ChannelID: "chan-1",
		DueTs:     time.Now().Add(30 * time.Second).Unix(),
		Memo:      "water the plants",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	w.Restart(ctx)
	w.wg.Wait()

	require.Len(t, gateway.Sent, 1)
	// chan-1 is not a reachable server channel, so delivery falls back to
	// the owner's private channel.
	assert.Equal(t, "dm:u1", gateway.Sent[0].ChannelID)
	assert.Contains(t, gateway.Sent[0].Out.Text, "Rem")
	assert.Contains(t, gateway.Sent[0].Out.Text, "water the plants")

	left, err := st.ListReminders(ctx, &store.FindReminder{})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestWatchdogDeliversToServerChannel(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{ServerChannels: map[string]bool{"chan-1": true}}
	w, st, _ := newTestWatchdog(t, ctx, gateway)

	_, err := st.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ChannelID: "chan-1",
		DueTs:     time.Now().Add(10 * time.Second).Unix(),
		Memo:      "standup",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	w.Restart(ctx)
	w.wg.Wait()

	require.Len(t, gateway.Sent, 1)
	assert.Equal(t, "chan-1", gateway.Sent[0].ChannelID)
	// Without a user record the raw ID is mentioned.
	assert.Contains(t, gateway.Sent[0].Out.Text, "u1")
}

func TestWatchdogAdaptiveNap(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	w, st, naps := newTestWatchdog(t, ctx, gateway)
	// Pretend the nap got cancelled so the loop exits after one poll.
	naps.sleepRet = false

	_, err := st.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ChannelID: "chan-1",
		DueTs:     time.Now().Add(600 * time.Second).Unix(),
		Memo:      "later",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	w.Restart(ctx)
	w.wg.Wait()

	recorded := naps.recorded()
	require.Len(t, recorded, 1)
	// ~601s remaining, undershot by the divisor.
	assert.InDelta(t, float64(601)/sleepDivisor, recorded[0].Seconds(), 3)
	assert.Empty(t, gateway.Sent)
}

func TestWatchdogNapIsCapped(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	w, st, naps := newTestWatchdog(t, ctx, gateway)
	naps.sleepRet = false

	_, err := st.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ChannelID: "chan-1",
		DueTs:     time.Now().Add(12 * time.Hour).Unix(),
		Memo:      "much later",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	w.Restart(ctx)
	w.wg.Wait()

	recorded := naps.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, maxSleep, recorded[0])
}

func TestWatchdogIdlesWhenEmpty(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	w, _, naps := newTestWatchdog(t, ctx, gateway)

	w.Restart(ctx)
	w.wg.Wait()

	assert.Empty(t, naps.recorded())
	assert.Empty(t, gateway.Sent)
}

func TestWatchdogConcurrentRestartsKeepOneLoop(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	w, st, _ := newTestWatchdog(t, ctx, gateway)

	_, err := st.CreateReminder(ctx, &store.Reminder{
		ID:        uuid.NewString(),
		UserID:    "u1",
		ChannelID: "chan-1",
		DueTs:     time.Now().Add(2 * time.Hour).Unix(),
		Memo:      "later",
		CreatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	// Count loops napping at the same time; each live loop holds one slot
	// until its context is cancelled.
	var active, peak int32
	w.sleep = func(ctx context.Context, _ time.Duration) bool {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-ctx.Done()
		return false
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Restart(ctx)
		}()
	}
	wg.Wait()

	// The last restart leaves exactly one loop napping.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&active) == 1
	}, time.Second, time.Millisecond)
	w.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&peak))
	assert.Zero(t, atomic.LoadInt32(&active))
}

func TestWatchdogStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gateway := &chattest.Gateway{}
	w, _, _ := newTestWatchdog(t, ctx, gateway)

	w.Restart(ctx)
	w.Stop()
	w.Stop()
}
