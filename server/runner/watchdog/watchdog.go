// Package watchdog runs the delayed-notification loop. A single supervised
// goroutine polls the store for the soonest due reminder, sleeps adaptively
// until delivery comes close, then counts down precisely, posts the reminder
// and deletes it. The loop idles itself away when no reminder is scheduled
// and is restarted whenever one is created.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/quotes"
	"github.com/hrygo/shuvi/server/reporter"
	"github.com/hrygo/shuvi/store"
)

const (
	// deliveryWindow is the remaining time below which the loop stops
	// re-polling and commits to a precise countdown.
	deliveryWindow = 60 * time.Second
	// maxSleep caps one adaptive nap so newly created earlier reminders are
	// picked up within the hour even without a restart.
	maxSleep = time.Hour
	// sleepDivisor undershoots the remaining time so the loop wakes up
	// before the due instant rather than after it.
	sleepDivisor = 1.25
)

// Requirements lists every quote path the watchdog consumes.
func Requirements() quotes.Requirements {
	return quotes.Requirements{Lists: []string{"reminder/due"}}
}

// Watchdog owns the reminder delivery loop.
type Watchdog struct {
	store    *store.Store
	gateway  chat.Gateway
	quotes   *quotes.Server
	reporter *reporter.Reporter
	logger   *slog.Logger

	// mu serializes the whole cancel, wait, spawn sequence so at most one
	// loop is ever live, even when commands restart concurrently.
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(st *store.Store, gateway chat.Gateway, q *quotes.Server, rep *reporter.Reporter, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		store:    st,
		gateway:  gateway,
		quotes:   q,
		reporter: rep,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Restart stops a running loop, waits for it to finish and starts a fresh
// one. Called at startup and after every reminder creation so a new earliest
// due time interrupts a long nap.
func (w *Watchdog) Restart(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()
}

// Stop cancels the loop and waits for it to finish.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.wg.Wait()
}

func (w *Watchdog) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.reporter.Report(context.WithoutCancel(ctx), errors.Errorf("watchdog panicked: %v", r))
		}
	}()

	for {
		next, err := w.store.CheckNextDue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.reporter.Report(ctx, errors.Wrap(err, "failed to check next due reminder"))
			return
		}
		if next == nil {
			w.logger.Debug("no upcoming reminders, idling")
			return
		}

		remaining := time.Duration(next.Remaining) * time.Second
		if remaining > deliveryWindow {
			nap := time.Duration(float64(remaining) / sleepDivisor)
			if nap > maxSleep {
				nap = maxSleep
			}
			w.logger.Debug("napping until next poll", "remaining", remaining, "nap", nap)
			if !w.sleep(ctx, nap) {
				return
			}
			continue
		}

		if !w.deliverNext(ctx, remaining) {
			return
		}
		// Re-poll immediately; another reminder may share the instant.
	}
}

// deliverNext counts down the final stretch while concurrently loading the
// delivery targets, then posts the reminder and deletes it. Returns false
// when the loop should stop.
func (w *Watchdog) deliverNext(ctx context.Context, wait time.Duration) bool {
	var rem *store.Reminder
	var mention string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := w.store.GetNextDue(gctx)
		if err != nil {
			return errors.Wrap(err, "failed to load due reminder")
		}
		if r == nil {
			return nil
		}
		rem = r
		mention = r.UserID
		user, err := w.store.GetUser(gctx, r.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to load reminder owner")
		}
		if user != nil && user.Name != "" {
			mention = user.Name
		}
		return nil
	})

	countdownDone := w.sleep(ctx, wait)
	if err := g.Wait(); err != nil {
		w.reporter.Report(ctx, err)
		return false
	}
	if !countdownDone {
		return false
	}
	if rem == nil {
		// The reminder disappeared under us; nothing to deliver.
		return true
	}

	// The countdown has elapsed, so finish the delivery even when the loop
	// gets cancelled right now.
	sendCtx := context.WithoutCancel(ctx)

	channelID, err := w.gateway.ResolveChannel(sendCtx, rem.ChannelID, rem.UserID)
	if err != nil {
		w.reporter.Report(sendCtx, errors.Wrap(err, "failed to resolve delivery channel"), "reminder", rem.ID)
		return false
	}
	text, err := w.quotes.Textf("reminder/due", mention, rem.Memo)
	if err != nil {
		w.reporter.Report(sendCtx, err, "reminder", rem.ID)
		return false
	}
	if _, err := w.gateway.Send(sendCtx, channelID, chat.Text(text)); err != nil {
		// Keep the row; the reminder is redelivered on the next restart.
		w.reporter.Report(sendCtx, errors.Wrap(err, "failed to deliver reminder"), "reminder", rem.ID)
		return false
	}
	if err := w.store.DeleteReminder(sendCtx, rem.ID); err != nil {
		w.reporter.Report(sendCtx, errors.Wrap(err, "failed to delete delivered reminder"), "reminder", rem.ID)
		return false
	}

	w.logger.Info("reminder delivered", "reminder", rem.ID, "user", rem.UserID, "channel", channelID)
	return true
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
