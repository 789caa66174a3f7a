package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/plugin/chat"
	"github.com/hrygo/shuvi/plugin/chat/console"
	"github.com/hrygo/shuvi/plugin/quotes"
	"github.com/hrygo/shuvi/plugin/timeparse"
	"github.com/hrygo/shuvi/server/dispatcher"
	"github.com/hrygo/shuvi/server/reporter"
	"github.com/hrygo/shuvi/server/runner/watchdog"
	"github.com/hrygo/shuvi/server/service/conversation"
	"github.com/hrygo/shuvi/server/service/reminder"
	"github.com/hrygo/shuvi/store"
	"github.com/hrygo/shuvi/store/db"
)

const version = "0.1.0"

// expiredAfter is how long an undelivered reminder may stay overdue before
// the startup cleanup drops it.
const expiredAfter = 48 * time.Hour

var rootCmd = &cobra.Command{
	Use:     "shuvi",
	Short:   "Shuvi is a chat bot that reminds people of things they asked to be reminded of",
	Version: version,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := &profile.Profile{
			Mode:            viper.GetString("mode"),
			Data:            viper.GetString("data"),
			Driver:          viper.GetString("driver"),
			DSN:             viper.GetString("dsn"),
			BotName:         viper.GetString("bot-name"),
			CommandPrefix:   viper.GetString("command-prefix"),
			DefaultTimezone: viper.GetString("default-timezone"),
			OperatorChannel: viper.GetString("operator-channel"),
			QuotesFile:      viper.GetString("quotes-file"),
			Version:         version,
		}
		if err := p.Validate(); err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		return serve(ctx, p)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the service, can be "prod" or "dev"`)
	flags.String("data", ".", "data directory")
	flags.String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	flags.String("dsn", "", "database source name (file path for sqlite, connection string for postgres)")
	flags.String("bot-name", "Shuvi", "display name used in conversation texts")
	flags.String("command-prefix", ".", "prefix that introduces a command message")
	flags.String("default-timezone", "Europe/Berlin", "IANA zone offered to users without one")
	flags.String("operator-channel", "", "channel that receives error reports")
	flags.String("quotes-file", "", "override for the embedded localized text store")

	viper.SetEnvPrefix("shuvi")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func serve(ctx context.Context, p *profile.Profile) error {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	q, err := quotes.Load(p.QuotesFile)
	if err != nil {
		return err
	}
	if err := q.Validate(
		quotes.Requirements{Lists: []string{"startup"}},
		timeparse.Requirements(),
		conversation.Requirements(),
		reporter.Requirements(),
		watchdog.Requirements(),
		reminder.Requirements(),
		dispatcher.Requirements(),
	); err != nil {
		return errors.Wrap(err, "incomplete quotes file")
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return errors.Wrap(err, "failed to create db driver")
	}
	st := store.New(driver, p)
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	}()
	if err := st.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}
	if dropped, err := st.DeleteExpiredReminders(ctx, expiredAfter); err != nil {
		logger.Warn("failed to clean up expired reminders", "err", err)
	} else if dropped > 0 {
		logger.Info("cleaned up expired reminders", "count", dropped)
	}

	gateway := console.New(os.Stdin, os.Stdout)
	rep := reporter.New(gateway, q, p, logger)
	conversations, err := conversation.NewService(gateway, q, p.BotName, logger)
	if err != nil {
		return err
	}
	parser, err := timeparse.New(q)
	if err != nil {
		return err
	}
	wd := watchdog.New(st, gateway, q, rep, logger)
	workflow := reminder.NewWorkflow(st, q, conversations, parser, wd, p, logger)
	disp := dispatcher.New(p, q, gateway, workflow, rep, logger)

	// Commands run detached from the pump; a conversation that awaits a
	// reply must not block the next inbound line.
	gateway.OnMessage = func(ctx context.Context, msg *chat.Message) {
		go disp.Dispatch(ctx, msg)
	}

	wd.Restart(ctx)
	defer wd.Stop()

	if text, err := q.Textf("startup", p.BotName); err == nil {
		_, _ = gateway.Send(ctx, console.ChannelID, chat.Text(text))
	} else {
		logger.Warn("failed to render startup message", "err", err)
	}
	logger.Info("service started", "mode", p.Mode, "driver", p.Driver, "version", p.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.Run(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
