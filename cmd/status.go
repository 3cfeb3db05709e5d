package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/domain"
)

var statusUpcoming int

// statusCmd shows what is going on right now
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active, overdue and upcoming work",
	Long: `Show a snapshot of the schedule: instances in progress, overdue
instances, the next upcoming instances, today's numbers and the next
reminder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := app.state.GetSnapshot(context.Background(), statusUpcoming)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		now := snap.Timestamp

		if jsonOutput {
			stats := snap.CurrentState.TodayStats
			data := map[string]interface{}{
				"timestamp": formatMoment(now),
				"active":    instancesJSON(snap.CurrentState.ActiveInstances, now),
				"overdue":   instancesJSON(snap.Overdue, now),
				"upcoming":  instancesJSON(snap.Upcoming, now),
				"today": map[string]interface{}{
					"scheduled":      stats.Scheduled,
					"completed":      stats.Completed,
					"cancelled":      stats.Cancelled,
					"overdue":        stats.Overdue,
					"work_time_mins": int(stats.TotalWorkTime.Minutes()),
				},
				"next_reminder": nil,
			}
			if ref := snap.CurrentState.NextReminder; ref != nil {
				data["next_reminder"] = map[string]interface{}{
					"instance_id": ref.InstanceID,
					"title":       ref.Title,
					"alert":       alertStateJSON(ref.Alert),
				}
			}
			return printJSON(cmd, data)
		}

		out := cmd.OutOrStdout()
		stats := snap.CurrentState.TodayStats
		fmt.Fprintf(out, "📅 %s\n", formatMoment(now.StartOfDay()))
		fmt.Fprintf(out, "   Today: %d scheduled, %d completed, %d cancelled, %d overdue", stats.Scheduled, stats.Completed, stats.Cancelled, stats.Overdue)
		if stats.TotalWorkTime > 0 {
			fmt.Fprintf(out, ", %s worked", formatMinutes(stats.TotalWorkTime))
		}
		fmt.Fprintln(out)

		section := func(title string, instances []*domain.TaskInstance) {
			if len(instances) == 0 {
				return
			}
			fmt.Fprintf(out, "\n%s\n", title)
			renderInstances(cmd, instances, now)
		}
		section("▶️  In progress", snap.CurrentState.ActiveInstances)
		section("⚠️  Overdue", snap.Overdue)
		section("🗓  Upcoming", snap.Upcoming)

		if ref := snap.CurrentState.NextReminder; ref != nil {
			fmt.Fprintf(out, "\n⏰ Next reminder: %s at %s\n", ref.Title, formatMoment(ref.Alert.FireTime()))
		} else if !snap.CurrentState.HasActiveWork() && len(snap.Upcoming) == 0 && len(snap.Overdue) == 0 {
			fmt.Fprintln(out, "\nNothing scheduled. Generate instances with 'cadence generate <template-id>'.")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusUpcoming, "upcoming", "u", 5, "Number of upcoming instances to show")
}
