package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/adapters/templatefile"
	"github.com/xvierd/cadence/internal/domain"
)

var statusColors = map[string]lipgloss.Color{
	string(domain.StatusPending):    lipgloss.Color("4"),
	string(domain.StatusInProgress): lipgloss.Color("3"),
	string(domain.StatusCompleted):  lipgloss.Color("2"),
	string(domain.StatusCancelled):  lipgloss.Color("8"),
	string(domain.StatusOverdue):    lipgloss.Color("1"),
	string(domain.TemplateDraft):    lipgloss.Color("8"),
	string(domain.TemplateActive):   lipgloss.Color("2"),
	string(domain.TemplatePaused):   lipgloss.Color("3"),
	string(domain.TemplateArchived): lipgloss.Color("8"),
}

// useColor reports whether w is an interactive terminal.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// colorStatus renders a status label, coloured when writing to a terminal.
func colorStatus(w io.Writer, status, label string) string {
	color, ok := statusColors[status]
	if !ok || !useColor(w) {
		return label
	}
	return lipgloss.NewStyle().Foreground(color).Bold(status == string(domain.StatusOverdue)).Render(label)
}

// newTable returns a table writer that renders to the command's output.
func newTable(cmd *cobra.Command, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
	return nil
}

func formatMoment(m domain.Moment) string {
	if m.IsZero() {
		return ""
	}
	return templatefile.FormatMoment(m)
}

func templateJSON(t *domain.TaskTemplate) map[string]interface{} {
	data := map[string]interface{}{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"kind":        string(t.Time.Kind),
		"start":       formatMoment(t.Time.Start),
		"recurrence":  domain.DescribeRule(t.Time.Recurrence),
		"policy":      t.Policy,
		"tags":        t.Metadata.Tags,
		"stats": map[string]interface{}{
			"total_instances":     t.Stats.TotalInstances,
			"completed_instances": t.Stats.CompletedInstances,
		},
		"created_at": formatMoment(t.CreatedAt),
	}
	if t.Time.End != nil {
		data["end"] = formatMoment(*t.Time.End)
	}
	var alerts []map[string]interface{}
	for _, a := range t.Reminders.Alerts {
		alerts = append(alerts, alertSpecJSON(a))
	}
	data["alerts"] = alerts
	return data
}

func alertSpecJSON(a domain.AlertSpec) map[string]interface{} {
	data := map[string]interface{}{
		"id":      a.ID,
		"channel": string(a.Channel),
		"message": a.Message,
	}
	if a.Timing.Kind == domain.TimingAbsolute {
		data["at"] = formatMoment(a.Timing.At)
	} else {
		data["minutes_before"] = a.Timing.MinutesBefore
	}
	return data
}

func instanceJSON(inst *domain.TaskInstance, now domain.Moment) map[string]interface{} {
	data := map[string]interface{}{
		"id":               inst.ID,
		"template_id":      inst.TemplateID,
		"title":            inst.Title,
		"status":           string(inst.EffectiveStatus(now)),
		"scheduled":        formatMoment(inst.Time.Scheduled),
		"allow_reschedule": inst.Time.AllowReschedule,
		"snooze_count":     inst.Reminders.SnoozeCount,
	}
	if inst.Time.End != nil {
		data["end"] = formatMoment(*inst.Time.End)
	}
	if inst.CompletedAt != nil {
		data["completed_at"] = formatMoment(*inst.CompletedAt)
	}
	var alerts []map[string]interface{}
	for _, a := range inst.Reminders.Alerts {
		alerts = append(alerts, alertStateJSON(a))
	}
	data["alerts"] = alerts
	return data
}

func alertStateJSON(a domain.AlertState) map[string]interface{} {
	data := map[string]interface{}{
		"id":      a.ID,
		"status":  string(a.Status),
		"channel": string(a.Spec.Channel),
		"fire_at": formatMoment(a.FireTime()),
		"snoozes": len(a.Snoozes),
	}
	if a.Spec.Message != "" {
		data["message"] = a.Spec.Message
	}
	return data
}

func instancesJSON(instances []*domain.TaskInstance, now domain.Moment) []map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(instances))
	for _, inst := range instances {
		list = append(list, instanceJSON(inst, now))
	}
	return list
}

// renderInstances prints instances as a table.
func renderInstances(cmd *cobra.Command, instances []*domain.TaskInstance, now domain.Moment) {
	out := cmd.OutOrStdout()
	tw := newTable(cmd, table.Row{"ID", "Title", "Scheduled", "End", "Status", "Alerts"})
	for _, inst := range instances {
		end := ""
		if inst.Time.End != nil {
			end = formatMoment(*inst.Time.End)
		}
		status := inst.EffectiveStatus(now)
		alerts := ""
		if a, ok := inst.NextReminder(); ok {
			alerts = "next " + formatMoment(a.FireTime())
		}
		tw.AppendRow(table.Row{
			shortID(inst.ID),
			inst.Title,
			formatMoment(inst.Time.Scheduled),
			end,
			colorStatus(out, string(status), domain.StatusLabel(status)),
			alerts,
		})
	}
	tw.Render()
}

// printInstance prints a one-instance summary.
func printInstance(cmd *cobra.Command, verb string, inst *domain.TaskInstance) error {
	now := app.clock.Now()
	if jsonOutput {
		return printJSON(cmd, instanceJSON(inst, now))
	}
	out := cmd.OutOrStdout()
	status := inst.EffectiveStatus(now)
	fmt.Fprintf(out, "%s %s (ID: %s) at %s [%s]\n", verb, inst.Title, inst.ID,
		formatMoment(inst.Time.Scheduled), colorStatus(out, string(status), domain.StatusLabel(status)))
	return nil
}

// describeInstance prints the full detail view of an instance.
func describeInstance(cmd *cobra.Command, inst *domain.TaskInstance) {
	out := cmd.OutOrStdout()
	now := app.clock.Now()
	status := inst.EffectiveStatus(now)

	fmt.Fprintf(out, "%s\n", inst.Title)
	fmt.Fprintf(out, "  ID:        %s\n", inst.ID)
	if inst.TemplateID != "" {
		fmt.Fprintf(out, "  Template:  %s\n", inst.TemplateID)
	}
	fmt.Fprintf(out, "  Status:    %s\n", colorStatus(out, string(status), domain.StatusLabel(status)))
	fmt.Fprintf(out, "  Scheduled: %s\n", formatMoment(inst.Time.Scheduled))
	if inst.Time.End != nil {
		fmt.Fprintf(out, "  End:       %s\n", formatMoment(*inst.Time.End))
	}
	if !inst.Time.BaseScheduled.Equal(inst.Time.Scheduled) {
		fmt.Fprintf(out, "  Moved from %s\n", formatMoment(inst.Time.BaseScheduled))
	}
	if d, ok := inst.ActualDuration(); ok {
		fmt.Fprintf(out, "  Took:      %s\n", formatMinutes(d))
	}
	if inst.Description != "" {
		fmt.Fprintf(out, "  %s\n", inst.Description)
	}
	if len(inst.Reminders.Alerts) > 0 {
		fmt.Fprintln(out, "  Alerts:")
		for _, a := range inst.Reminders.Alerts {
			fmt.Fprintf(out, "    %s  %-9s %-12s %s\n", shortID(a.ID), a.Status, a.Spec.Channel, formatMoment(a.FireTime()))
		}
	}
	if len(inst.Events) > 0 {
		fmt.Fprintln(out, "  History:")
		for _, e := range inst.Events {
			line := fmt.Sprintf("    %s  %s", formatMoment(e.At), e.Type)
			if e.Detail != "" {
				line += " (" + e.Detail + ")"
			}
			fmt.Fprintln(out, strings.TrimRight(line, " "))
		}
	}
}
