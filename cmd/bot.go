package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/nihongo/internal/bot"
	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/progress"
	"github.com/example/nihongo/internal/quiz"
	"github.com/example/nihongo/internal/scheduler"
)

const shutdownTimeout = 5 * time.Second

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		logger := a.logger

		deviceDB, err := a.openDevice()
		if err != nil {
			return err
		}
		defer deviceDB.Close()

		var cloud progress.CloudStore
		if a.cfg.Cloud.DSN != "" {
			cloudDB, err := a.openCloud()
			if err != nil {
				return err
			}
			defer cloudDB.Close()
			cloud = database.NewDocumentStore(cloudDB)
		} else {
			logger.Warn("No cloud database configured, progress stays on this device")
		}

		adminIDs, err := a.cfg.AdminIDs()
		if err != nil {
			return err
		}

		catalog := a.catalog(deviceDB)
		botConfig := bot.DefaultConfig()
		botConfig.Debug = a.cfg.Telegram.Debug

		b, err := bot.New(a.cfg.Telegram.Token, bot.Deps{
			DeviceDB: deviceDB,
			Cloud:    cloud,
			Catalog:  catalog,
			Quizzes:  quiz.NewGenerator(catalog, 0),
			Progress: a.progressConfig(),
			Logger:   logger,
			AdminIDs: adminIDs,
		}, botConfig)
		if err != nil {
			return err
		}

		var reminders *scheduler.Scheduler
		if a.cfg.Reminder.Enabled {
			reminders = scheduler.New(b, b, scheduler.Config{Hour: a.cfg.Reminder.Hour}, logger)
			if err := reminders.Start(); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- b.Start(ctx) }()
		logger.Info("Bot started. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var runErr error
		select {
		case sig := <-sigCh:
			logger.Infof("Received signal: %s, shutting down", sig)
		case runErr = <-errCh:
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}
		}

		if reminders != nil {
			reminders.Stop()
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := b.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error during shutdown")
		}
		logger.Info("Bot stopped successfully")
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
