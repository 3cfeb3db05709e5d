package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCmd.RunE(cmd, args)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.config
		if jsonOutput {
			return printJSON(cmd, map[string]interface{}{
				"path":     app.configPath,
				"timezone": cfg.Timezone,
				"generation": map[string]interface{}{
					"max_instances":    cfg.Generation.MaxInstances,
					"horizon_days":     cfg.Generation.HorizonDays,
					"default_duration": cfg.Generation.DefaultDuration.String(),
					"holidays":         cfg.Generation.Holidays,
					"workday_start":    cfg.Generation.WorkdayStart,
					"workday_end":      cfg.Generation.WorkdayEnd,
				},
				"reminders": map[string]interface{}{
					"max_snoozes":    cfg.Reminders.MaxSnoozes,
					"default_snooze": cfg.Reminders.DefaultSnooze.String(),
					"sync_interval":  cfg.Reminders.SyncInterval.String(),
				},
				"notifications": map[string]interface{}{
					"enabled":         cfg.Notifications.Enabled,
					"sound":           cfg.Notifications.Sound,
					"rate_per_minute": cfg.Notifications.RatePerMinute,
				},
				"storage": map[string]interface{}{"data_dir": cfg.Storage.DataDir},
				"logging": map[string]interface{}{"level": cfg.Logging.Level, "console": cfg.Logging.Console},
				"mcp":     map[string]interface{}{"enabled": cfg.MCP.Enabled},
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  Config file:       %s\n\n", app.configPath)
		fmt.Fprintf(out, "  Timezone:          %s\n", cfg.Timezone)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Generation:")
		fmt.Fprintf(out, "    Max instances:   %d\n", cfg.Generation.MaxInstances)
		fmt.Fprintf(out, "    Horizon:         %d days\n", cfg.Generation.HorizonDays)
		fmt.Fprintf(out, "    Default length:  %s\n", formatMinutes(time.Duration(cfg.Generation.DefaultDuration)))
		fmt.Fprintf(out, "    Workday:         %s-%s\n", cfg.Generation.WorkdayStart, cfg.Generation.WorkdayEnd)
		if len(cfg.Generation.Holidays) > 0 {
			fmt.Fprintf(out, "    Holidays:        %s\n", strings.Join(cfg.Generation.Holidays, ", "))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Reminders:")
		snoozes := "unlimited"
		if cfg.Reminders.MaxSnoozes > 0 {
			snoozes = fmt.Sprintf("%d", cfg.Reminders.MaxSnoozes)
		}
		fmt.Fprintf(out, "    Max snoozes:     %s\n", snoozes)
		fmt.Fprintf(out, "    Default snooze:  %s\n", formatMinutes(time.Duration(cfg.Reminders.DefaultSnooze)))
		fmt.Fprintf(out, "    Sync interval:   %s\n", formatMinutes(time.Duration(cfg.Reminders.SyncInterval)))

		notifStatus := "off"
		if cfg.Notifications.Enabled {
			notifStatus = "on"
			if cfg.Notifications.Sound {
				notifStatus = "on (with sound)"
			}
		}
		fmt.Fprintf(out, "    Notifications:   %s\n", notifStatus)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Data directory:    %s\n", cfg.Storage.DataDir)
		fmt.Fprintf(out, "  Log level:         %s\n", cfg.Logging.Level)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Change one setting and save it to the config file. Keys are dotted,
for example reminders.max_snoozes or generation.holidays (comma-separated).
Run "cadence config keys" for the full list.`,
	Example: `  cadence config set reminders.default_snooze 15m
  cadence config set generation.holidays 2025-12-25,2026-01-01`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Set(app.configPath, args[0], args[1])
		if err != nil {
			return err
		}
		app.config = cfg
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s = %s\n", strings.ToLower(args[0]), args[1])
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settable keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configKeysCmd)
}
