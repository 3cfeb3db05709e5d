package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/config"
	"github.com/xvierd/cadence/internal/reminders"
)

// watchCmd runs the reminder loop in the foreground
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Deliver reminders as they come due",
	Long: `Run in the foreground and deliver reminders as desktop notifications when
they come due. Storage is re-read every reminders.sync_interval, so
instances added from another terminal are picked up. Changes to the sync
interval in the config file apply without a restart.

Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval := time.Duration(app.config.Reminders.SyncInterval)
		dispatcher := reminders.NewDispatcher(app.instances, app.instances, app.notifier, app.clock, app.logger, interval)

		if _, err := config.Watch(app.configPath, func(cfg *config.Config, err error) {
			if err != nil {
				app.logger.Warn().Err(err).Msg("ignoring invalid config change")
				return
			}
			next := time.Duration(cfg.Reminders.SyncInterval)
			dispatcher.SetInterval(next)
			app.logger.Info().Dur("sync_interval", next).Msg("config reloaded")
		}); err != nil {
			app.logger.Warn().Err(err).Msg("config changes will not be picked up")
		}

		if !jsonOutput {
			fmt.Fprintf(cmd.ErrOrStderr(), "👀 Watching reminders (sync every %s). Press Ctrl+C to stop.\n", formatMinutes(interval))
			if !app.notifier.IsEnabled() {
				fmt.Fprintln(cmd.ErrOrStderr(), "   Notifications are off; reminders are only logged.")
			}
		}

		return dispatcher.Run(setupSignalHandler())
	},
}
