package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/adapters/templatefile"
	"github.com/xvierd/cadence/internal/domain"
)

var (
	snoozeUntil  string
	snoozeFor    time.Duration
	snoozeReason string
)

// alertCmd groups the reminder alert subcommands
var alertCmd = &cobra.Command{
	Use:     "alert",
	Aliases: []string{"alerts", "reminder"},
	Short:   "Inspect and act on reminder alerts",
}

var alertNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the reminder that fires next",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := app.instances.NextReminder(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			if ref == nil {
				return printJSON(cmd, map[string]interface{}{"reminder": nil})
			}
			return printJSON(cmd, map[string]interface{}{
				"reminder": map[string]interface{}{
					"instance_id": ref.InstanceID,
					"title":       ref.Title,
					"alert":       alertStateJSON(ref.Alert),
				},
			})
		}
		if ref == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending reminders.")
			return nil
		}
		until := ref.Alert.FireTime().Sub(app.clock.Now())
		fmt.Fprintf(cmd.OutOrStdout(), "⏰ %s at %s", ref.Title, formatMoment(ref.Alert.FireTime()))
		if until > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (in %s)", formatMinutes(until))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n   instance %s, alert %s\n", shortID(ref.InstanceID), shortID(ref.Alert.ID))
		return nil
	},
}

var alertDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List reminders whose time has come",
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := app.instances.DueReminders(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			list := make([]map[string]interface{}, 0, len(due))
			for _, r := range due {
				list = append(list, map[string]interface{}{
					"instance_id": r.InstanceID,
					"alert_id":    r.AlertID,
					"title":       r.Title,
					"message":     r.Message,
					"channel":     string(r.Channel),
					"fire_at":     formatMoment(r.FireAt),
				})
			}
			return printJSON(cmd, map[string]interface{}{"reminders": list, "count": len(list)})
		}
		if len(due) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No reminders due.")
			return nil
		}
		tw := newTable(cmd, table.Row{"Instance", "Alert", "Title", "Fire at", "Channel"})
		for _, r := range due {
			tw.AppendRow(table.Row{shortID(r.InstanceID), shortID(r.AlertID), r.Title, formatMoment(r.FireAt), r.Channel})
		}
		tw.Render()
		return nil
	},
}

var alertTriggerCmd = &cobra.Command{
	Use:   "trigger [instance-id] [alert-id]",
	Short: "Mark an alert as fired",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAlertAction(cmd, args, "🔔 Triggered", app.instances.TriggerAlert)
	},
}

var alertDismissCmd = &cobra.Command{
	Use:   "dismiss [instance-id] [alert-id]",
	Short: "Dismiss an alert",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAlertAction(cmd, args, "🔕 Dismissed", app.instances.DismissAlert)
	},
}

var alertSnoozeCmd = &cobra.Command{
	Use:   "snooze [instance-id] [alert-id]",
	Short: "Snooze an alert",
	Long: `Snooze an alert until --until, for --for, or by the configured default
snooze. The number of snoozes per instance is capped by reminders.max_snoozes.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var until *domain.Moment
		switch {
		case snoozeUntil != "":
			m, _, err := templatefile.ParseMoment(snoozeUntil, timezone())
			if err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}
			until = &m
		case snoozeFor > 0:
			m := app.clock.Now().Add(snoozeFor)
			until = &m
		}

		return runAlertAction(cmd, args, "😴 Snoozed", func(ctx context.Context, id, alertID string) (*domain.TaskInstance, error) {
			inst, err := app.instances.SnoozeAlert(ctx, id, alertID, until, snoozeReason)
			if errors.Is(err, domain.ErrSnoozeLimitReached) {
				return nil, fmt.Errorf("%w; dismiss the alert instead", err)
			}
			return inst, err
		})
	},
}

func init() {
	alertSnoozeCmd.Flags().StringVar(&snoozeUntil, "until", "", `Snooze until "YYYY-MM-DD HH:MM"`)
	alertSnoozeCmd.Flags().DurationVar(&snoozeFor, "for", 0, "Snooze for a duration, e.g. 15m")
	alertSnoozeCmd.Flags().StringVar(&snoozeReason, "reason", "", "Why the alert was snoozed")
	alertSnoozeCmd.MarkFlagsMutuallyExclusive("until", "for")

	alertCmd.AddCommand(alertNextCmd, alertDueCmd, alertTriggerCmd, alertDismissCmd, alertSnoozeCmd)
}

func runAlertAction(cmd *cobra.Command, args []string, verb string, fn func(context.Context, string, string) (*domain.TaskInstance, error)) error {
	ctx := context.Background()
	id, err := instanceID(ctx, args[0])
	if err != nil {
		return err
	}
	inst, err := app.instances.GetInstance(ctx, id)
	if err != nil {
		return err
	}
	alertID, err := resolveAlertID(inst, args[1])
	if err != nil {
		return err
	}

	inst, err = fn(ctx, id, alertID)
	if err != nil {
		return err
	}
	a, err := inst.Alert(alertID)
	if err != nil {
		return err
	}

	if jsonOutput {
		data := alertStateJSON(*a)
		data["instance_id"] = inst.ID
		return printJSON(cmd, data)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s alert %s of '%s'", verb, shortID(a.ID), inst.Title)
	if a.Status == domain.AlertSnoozed && a.SnoozedUntil != nil {
		fmt.Fprintf(cmd.OutOrStdout(), " until %s", formatMoment(*a.SnoozedUntil))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// resolveAlertID resolves an alert ID prefix within one instance.
func resolveAlertID(inst *domain.TaskInstance, prefix string) (string, error) {
	ids := make([]string, 0, len(inst.Reminders.Alerts))
	for _, a := range inst.Reminders.Alerts {
		if a.ID == prefix {
			return a.ID, nil
		}
		ids = append(ids, a.ID)
	}
	id, err := matchPrefix("alert", prefix, ids)
	if err != nil {
		return "", fmt.Errorf("%w (instance %s has %s)", err, shortID(inst.ID), strings.Join(shortIDs(ids), ", "))
	}
	return id, nil
}

func shortIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = shortID(id)
	}
	return out
}
