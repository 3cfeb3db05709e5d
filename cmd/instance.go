package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/adapters/templatefile"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
	"github.com/xvierd/cadence/internal/services"
)

var (
	instTemplate string
	instStatus   string
	instFrom     string
	instTo       string
	instLimit    int
	instAll      bool

	addAt          string
	addEnd         string
	addDescription string
	addAlerts      string
	addChannel     string
	addMessage     string
	addEstimate    string
	addLocked      bool

	cancelReason string
)

// instanceCmd groups the instance subcommands
var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"inst", "i"},
	Short:   "Manage task instances",
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task instances",
	Long: `List task instances ordered by scheduled time. Only open instances are
shown unless --all or --status is given. --status overdue selects open
instances that are past due.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		now := app.clock.Now()

		filter, overdueOnly, err := instanceFilter(ctx)
		if err != nil {
			return err
		}

		instances, err := app.instances.ListInstances(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
		if overdueOnly {
			kept := instances[:0]
			for _, inst := range instances {
				if inst.EffectiveStatus(now) == domain.StatusOverdue {
					kept = append(kept, inst)
				}
			}
			instances = kept
		}

		if jsonOutput {
			return printJSON(cmd, map[string]interface{}{
				"instances": instancesJSON(instances, now),
				"count":     len(instances),
			})
		}
		if len(instances) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No instances found.")
			return nil
		}
		renderInstances(cmd, instances, now)
		return nil
	},
}

var instanceShowCmd = &cobra.Command{
	Use:   "show [instance-id]",
	Short: "Show an instance with its alerts and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := instanceID(ctx, args[0])
		if err != nil {
			return err
		}
		inst, err := app.instances.GetInstance(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get instance: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, instanceJSON(inst, app.clock.Now()))
		}
		describeInstance(cmd, inst)
		return nil
	},
}

var instanceAddCmd = &cobra.Command{
	Use:     "add [title]",
	Short:   "Add a one-off instance that belongs to no template",
	Example: `  cadence instance add "Dentist" --at "2025-01-07 14:00" --end "2025-01-07 15:00" --alert 60 --channel sound`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := addRequest(strings.Join(args, " "))
		if err != nil {
			return err
		}

		inst, err := app.instances.CreateInstance(context.Background(), req)
		if err != nil {
			return fmt.Errorf("failed to create instance: %w", err)
		}
		return printInstance(cmd, "✅ Instance added:", inst)
	},
}

var instanceStartCmd = &cobra.Command{
	Use:   "start [instance-id]",
	Short: "Start working on an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstanceAction(cmd, args[0], "▶️  Started:", app.instances.StartInstance)
	},
}

var instanceCompleteCmd = &cobra.Command{
	Use:     "complete [instance-id]",
	Aliases: []string{"done"},
	Short:   "Mark an instance as completed",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstanceAction(cmd, args[0], "✅ Completed:", app.instances.CompleteInstance)
	},
}

var instanceUndoCmd = &cobra.Command{
	Use:   "undo [instance-id]",
	Short: "Reopen a completed instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstanceAction(cmd, args[0], "↩️  Reopened:", app.instances.UndoComplete)
	},
}

var instanceCancelCmd = &cobra.Command{
	Use:   "cancel [instance-id]",
	Short: "Cancel an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstanceAction(cmd, args[0], "🚫 Cancelled:", func(ctx context.Context, id string) (*domain.TaskInstance, error) {
			return app.instances.CancelInstance(ctx, id, cancelReason)
		})
	},
}

var instanceRescheduleCmd = &cobra.Command{
	Use:     "reschedule [instance-id] [datetime]",
	Aliases: []string{"move"},
	Short:   "Move an instance to a new time",
	Long: `Move an instance to a new time. The end time and relative alerts move
along. The owning template's policy can forbid rescheduling or limit how far
an instance may be moved. Overlaps with other open instances are reported.`,
	Example: `  cadence instance reschedule 9c1e "2025-01-08 10:30"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := instanceID(ctx, args[0])
		if err != nil {
			return err
		}
		when, _, err := templatefile.ParseMoment(args[1], timezone())
		if err != nil {
			return err
		}

		result, err := app.instances.RescheduleInstance(ctx, id, when)
		if err != nil {
			return err
		}

		if jsonOutput {
			conflicts := make([]string, 0, len(result.Conflicts))
			for _, c := range result.Conflicts {
				conflicts = append(conflicts, c.ID)
			}
			data := instanceJSON(result.Instance, app.clock.Now())
			data["conflicts_with"] = conflicts
			return printJSON(cmd, data)
		}

		if err := printInstance(cmd, "📅 Rescheduled:", result.Instance); err != nil {
			return err
		}
		printConflicts(cmd, result.Conflicts)
		return nil
	},
}

var instanceDeleteCmd = &cobra.Command{
	Use:   "delete [instance-id]",
	Short: "Delete an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := instanceID(ctx, args[0])
		if err != nil {
			return err
		}
		if err := app.instances.DeleteInstance(ctx, id); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, map[string]interface{}{"deleted": true, "instance_id": id})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Instance %s deleted.\n", shortID(id))
		return nil
	},
}

func init() {
	instanceListCmd.Flags().StringVar(&instTemplate, "template", "", "Only instances of this template")
	instanceListCmd.Flags().StringVarP(&instStatus, "status", "s", "", "Filter by status (pending, in_progress, completed, cancelled, overdue)")
	instanceListCmd.Flags().StringVar(&instFrom, "from", "", "Scheduled on or after this date (YYYY-MM-DD)")
	instanceListCmd.Flags().StringVar(&instTo, "to", "", "Scheduled on or before this date (YYYY-MM-DD)")
	instanceListCmd.Flags().IntVarP(&instLimit, "limit", "n", 0, "Maximum number of instances")
	instanceListCmd.Flags().BoolVar(&instAll, "all", false, "Include completed and cancelled instances")

	instanceAddCmd.Flags().StringVar(&addAt, "at", "", `Scheduled time, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD"`)
	instanceAddCmd.Flags().StringVar(&addEnd, "end", "", "End time")
	instanceAddCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Description")
	instanceAddCmd.Flags().StringVarP(&addAlerts, "alert", "a", "", "Reminders as minutes before the start, e.g. 10,60")
	instanceAddCmd.Flags().StringVar(&addChannel, "channel", "", "Reminder channel: notification, sound, email")
	instanceAddCmd.Flags().StringVar(&addMessage, "message", "", "Reminder message")
	instanceAddCmd.Flags().StringVar(&addEstimate, "estimate", "", "Estimated duration, e.g. 30m")
	instanceAddCmd.Flags().BoolVar(&addLocked, "locked", false, "Forbid rescheduling")
	_ = instanceAddCmd.MarkFlagRequired("at")

	instanceCancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Why the instance was cancelled")

	instanceCmd.AddCommand(instanceListCmd, instanceShowCmd, instanceAddCmd, instanceStartCmd,
		instanceCompleteCmd, instanceUndoCmd, instanceCancelCmd, instanceRescheduleCmd, instanceDeleteCmd)
}

func instanceFilter(ctx context.Context) (ports.InstanceFilter, bool, error) {
	tz := timezone()
	filter := ports.InstanceFilter{Limit: instLimit}
	overdueOnly := false

	switch s := domain.InstanceStatus(instStatus); {
	case instStatus == "":
		if !instAll {
			filter.Statuses = ports.OpenInstances().Statuses
		}
	case s == domain.StatusOverdue:
		filter.Statuses = ports.OpenInstances().Statuses
		overdueOnly = true
		// Overdue is derived, so the limit applies after filtering.
		filter.Limit = 0
	case s.IsValid():
		filter.Statuses = []domain.InstanceStatus{s}
	default:
		return filter, false, fmt.Errorf("unknown status %q", instStatus)
	}

	if instTemplate != "" {
		id, err := templateID(ctx, instTemplate)
		if err != nil {
			return filter, false, err
		}
		filter.TemplateID = id
	}
	if instFrom != "" {
		m, _, err := templatefile.ParseMoment(instFrom, tz)
		if err != nil {
			return filter, false, fmt.Errorf("invalid --from: %w", err)
		}
		m = m.StartOfDay()
		filter.From = &m
	}
	if instTo != "" {
		m, _, err := templatefile.ParseMoment(instTo, tz)
		if err != nil {
			return filter, false, fmt.Errorf("invalid --to: %w", err)
		}
		m = m.EndOfDay()
		filter.To = &m
	}
	return filter, overdueOnly, nil
}

func addRequest(title string) (services.CreateInstanceRequest, error) {
	tz := timezone()
	req := services.CreateInstanceRequest{
		Title:       title,
		Description: addDescription,
		Locked:      addLocked,
	}

	at, dateOnly, err := templatefile.ParseMoment(addAt, tz)
	if err != nil {
		return req, fmt.Errorf("invalid --at: %w", err)
	}
	req.Time = domain.InstanceTimeConfig{Kind: domain.TimeTimed, Scheduled: at}
	if dateOnly {
		req.Time.Kind = domain.TimeAllDay
	}
	if addEnd != "" {
		end, _, err := templatefile.ParseMoment(addEnd, tz)
		if err != nil {
			return req, fmt.Errorf("invalid --end: %w", err)
		}
		req.Time.Kind = domain.TimeRange
		req.Time.End = &end
	}
	if addEstimate != "" {
		d, err := time.ParseDuration(addEstimate)
		if err != nil {
			return req, fmt.Errorf("invalid --estimate: %w", err)
		}
		req.Time.EstimatedDuration = &d
	}

	for _, raw := range splitList(addAlerts) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("invalid --alert %q: want minutes before the start", raw)
		}
		req.Alerts = append(req.Alerts, domain.NewAlertSpec(domain.MinutesBefore(n), domain.Channel(addChannel), addMessage))
	}
	return req, nil
}

func runInstanceAction(cmd *cobra.Command, arg, verb string, fn func(context.Context, string) (*domain.TaskInstance, error)) error {
	ctx := context.Background()
	id, err := instanceID(ctx, arg)
	if err != nil {
		return err
	}
	inst, err := fn(ctx, id)
	if err != nil {
		return err
	}
	return printInstance(cmd, verb, inst)
}

func printConflicts(cmd *cobra.Command, conflicts []*domain.TaskInstance) {
	if len(conflicts) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "⚠️  Overlaps %d other instance(s):\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(out, "   %s  %s at %s\n", shortID(c.ID), c.Title, formatMoment(c.Time.Scheduled))
	}
}
