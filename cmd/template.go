package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xvierd/cadence/internal/adapters/templatefile"
	"github.com/xvierd/cadence/internal/domain"
)

// templateFlags are the definition flags shared by create and edit.
type templateFlags struct {
	title        string
	description  string
	kind         string
	start        string
	end          string
	repeat       string
	interval     int
	on           string
	days         string
	cron         string
	until        string
	count        int
	alerts       string
	channel      string
	message      string
	noReschedule bool
	maxDelay     int
	skipWeekends bool
	skipHolidays bool
	workingHours bool
	category     string
	tags         string
	priority     int
	difficulty   int
	estimate     string
}

var (
	createFlags templateFlags
	editFlags   templateFlags

	createActivate bool
	listStatus     string
	listSearch     string
	deleteForce    bool
	deleteYes      bool
	exportOutput   string
)

var (
	timeFlagNames     = []string{"kind", "start", "end", "repeat", "interval", "on", "days", "cron", "until", "count"}
	reminderFlagNames = []string{"alert", "channel", "message"}
	policyFlagNames   = []string{"no-reschedule", "max-delay", "skip-weekends", "skip-holidays", "working-hours"}
	metadataFlagNames = []string{"category", "tags", "priority", "difficulty", "estimate"}
)

// templateCmd groups the template subcommands
var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tmpl", "t"},
	Short:   "Manage recurring task templates",
}

var templateCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a task template",
	Long: `Create a task template. Times are written as "2006-01-02 15:04"; a bare
date makes an all-day template. The template starts as a draft unless
--activate is given.`,
	Example: `  cadence template create "Standup" --start "2025-01-06 09:00" --end "2025-01-06 09:15" \
      --repeat weekly --on mon,wed,fri --alert 10 --activate`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		def, err := createFlags.definition(strings.Join(args, " "))
		if err != nil {
			return err
		}
		def.Activate = createActivate

		req, err := def.Request(timezone())
		if err != nil {
			return err
		}

		tmpl, err := app.templates.CreateTemplate(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd, templateJSON(tmpl))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Template created: %s (ID: %s) [%s]\n", tmpl.Title, tmpl.ID, domain.TemplateStatusLabel(tmpl.Status))
		fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", domain.DescribeRule(tmpl.Time.Recurrence))
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	Long:  `List templates, optionally filtered by status or a fuzzy title search.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var (
			templates []*domain.TaskTemplate
			err       error
		)
		if listSearch != "" {
			templates, err = app.templates.SearchTemplates(ctx, listSearch)
		} else {
			var status *domain.TemplateStatus
			if listStatus != "" {
				s := domain.TemplateStatus(listStatus)
				status = &s
			}
			templates, err = app.templates.ListTemplates(ctx, status)
		}
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}

		if jsonOutput {
			list := make([]map[string]interface{}, 0, len(templates))
			for _, t := range templates {
				list = append(list, templateJSON(t))
			}
			return printJSON(cmd, map[string]interface{}{
				"templates": list,
				"count":     len(list),
			})
		}

		if len(templates) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
			return nil
		}

		out := cmd.OutOrStdout()
		tw := newTable(cmd, table.Row{"ID", "Title", "Status", "Schedule", "Start", "Done"})
		for _, t := range templates {
			tw.AppendRow(table.Row{
				shortID(t.ID),
				t.Title,
				colorStatus(out, string(t.Status), domain.TemplateStatusLabel(t.Status)),
				domain.DescribeRule(t.Time.Recurrence),
				formatMoment(t.Time.Start),
				fmt.Sprintf("%d/%d", t.Stats.CompletedInstances, t.Stats.TotalInstances),
			})
		}
		tw.Render()
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show [template-id]",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := templateID(ctx, args[0])
		if err != nil {
			return err
		}
		tmpl, err := app.templates.GetTemplate(ctx, id)
		if err != nil {
			return templateLookupError(id, err)
		}
		if jsonOutput {
			return printJSON(cmd, templateJSON(tmpl))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", tmpl.Title)
		fmt.Fprintf(out, "  ID:       %s\n", tmpl.ID)
		fmt.Fprintf(out, "  Status:   %s\n", colorStatus(out, string(tmpl.Status), domain.TemplateStatusLabel(tmpl.Status)))
		fmt.Fprintf(out, "  Schedule: %s\n", domain.DescribeRule(tmpl.Time.Recurrence))
		fmt.Fprintf(out, "  Start:    %s\n", formatMoment(tmpl.Time.Start))
		if tmpl.Time.End != nil {
			fmt.Fprintf(out, "  End:      %s\n", formatMoment(*tmpl.Time.End))
		}
		if tmpl.Description != "" {
			fmt.Fprintf(out, "  %s\n", tmpl.Description)
		}
		for _, a := range tmpl.Reminders.Alerts {
			when := fmt.Sprintf("%d min before", a.Timing.MinutesBefore)
			if a.Timing.Kind == domain.TimingAbsolute {
				when = "at " + formatMoment(a.Timing.At)
			}
			fmt.Fprintf(out, "  Alert:    %s via %s\n", when, a.Channel)
		}
		if !tmpl.Policy.AllowReschedule {
			fmt.Fprintln(out, "  Rescheduling is locked")
		}
		fmt.Fprintf(out, "  Instances: %d generated, %d completed\n", tmpl.Stats.TotalInstances, tmpl.Stats.CompletedInstances)
		return nil
	},
}

var templateEditCmd = &cobra.Command{
	Use:   "edit [template-id]",
	Short: "Edit a template and update its open instances",
	Long: `Edit a template. Only the facets named by the given flags change. Open
instances of the template pick up the new time, reminders and details;
completed and cancelled instances keep their history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := templateID(ctx, args[0])
		if err != nil {
			return err
		}
		tmpl, err := app.templates.GetTemplate(ctx, id)
		if err != nil {
			return templateLookupError(id, err)
		}

		patch, err := editFlags.patch(cmd.Flags(), tmpl)
		if err != nil {
			return err
		}

		result, err := app.templates.UpdateTemplate(ctx, tmpl.ID, patch)
		if err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}

		if jsonOutput {
			updated := make([]string, 0, len(result.Updated))
			for _, inst := range result.Updated {
				updated = append(updated, inst.ID)
			}
			return printJSON(cmd, map[string]interface{}{
				"template": templateJSON(result.Template),
				"changes":  result.Changes.String(),
				"updated":  updated,
			})
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Template updated: %s\n", result.Template.Title)
		if result.Changes.Any() {
			fmt.Fprintf(cmd.OutOrStdout(), "   Changed %s; %d instance(s) updated.\n", result.Changes, len(result.Updated))
		}
		return nil
	},
}

var templateActivateCmd = &cobra.Command{
	Use:   "activate [template-id]",
	Short: "Activate a template so it can generate instances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args[0], "activated", app.templates.ActivateTemplate)
	},
}

var templatePauseCmd = &cobra.Command{
	Use:   "pause [template-id]",
	Short: "Pause generation for a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args[0], "paused", app.templates.PauseTemplate)
	},
}

var templateArchiveCmd = &cobra.Command{
	Use:   "archive [template-id]",
	Short: "Archive a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args[0], "archived", app.templates.ArchiveTemplate)
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete [template-id]",
	Short: "Delete a template",
	Long: `Delete a template by its ID. A template that still has instances is only
deleted with --force, which removes its instances too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := templateID(ctx, args[0])
		if err != nil {
			return err
		}
		tmpl, err := app.templates.GetTemplate(ctx, id)
		if err != nil {
			return templateLookupError(id, err)
		}

		if !jsonOutput && !deleteYes {
			prompt := fmt.Sprintf("Are you sure you want to delete template '%s' (%s)?", tmpl.Title, shortID(tmpl.ID))
			if deleteForce && tmpl.Stats.TotalInstances > 0 {
				prompt += fmt.Sprintf(" Its %d instance(s) will be deleted too.", tmpl.Stats.TotalInstances)
			}
			if !confirm(cmd, prompt) {
				fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled.")
				return nil
			}
		}

		removed, err := app.templates.DeleteTemplate(ctx, tmpl.ID, deleteForce)
		if err != nil {
			var terr *domain.TransitionError
			if errors.As(err, &terr) {
				return fmt.Errorf("%w (use --force to delete its instances too)", err)
			}
			return fmt.Errorf("failed to delete template: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd, map[string]interface{}{
				"deleted":           true,
				"template_id":       tmpl.ID,
				"instances_removed": removed,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Template '%s' deleted", tmpl.Title)
		if removed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " with %d instance(s)", removed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ".")
		return nil
	},
}

var templateExportCmd = &cobra.Command{
	Use:   "export [template-id...]",
	Short: "Export templates as YAML",
	Long:  `Export the named templates, or all of them, as a YAML document that "template import" reads back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var templates []*domain.TaskTemplate
		if len(args) == 0 {
			all, err := app.templates.ListTemplates(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to list templates: %w", err)
			}
			templates = all
		}
		for _, arg := range args {
			id, err := templateID(ctx, arg)
			if err != nil {
				return err
			}
			tmpl, err := app.templates.GetTemplate(ctx, id)
			if err != nil {
				return templateLookupError(id, err)
			}
			templates = append(templates, tmpl)
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			w = f
		}

		if err := templatefile.Write(w, templates); err != nil {
			return err
		}
		if exportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d template(s) to %s\n", len(templates), exportOutput)
		}
		return nil
	},
}

var templateImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Create templates from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		reqs, err := templatefile.ReadFile(args[0], timezone())
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		created := make([]*domain.TaskTemplate, 0, len(reqs))
		for _, req := range reqs {
			tmpl, err := app.templates.CreateTemplate(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create template %q: %w", req.Title, err)
			}
			created = append(created, tmpl)
		}

		if jsonOutput {
			list := make([]map[string]interface{}, 0, len(created))
			for _, t := range created {
				list = append(list, templateJSON(t))
			}
			return printJSON(cmd, map[string]interface{}{
				"templates": list,
				"count":     len(list),
			})
		}
		for _, t := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Template created: %s (ID: %s) [%s]\n", t.Title, t.ID, domain.TemplateStatusLabel(t.Status))
		}
		return nil
	},
}

func init() {
	createFlags.register(templateCreateCmd.Flags(), true)
	templateCreateCmd.Flags().BoolVar(&createActivate, "activate", false, "Activate the template right away")

	editFlags.register(templateEditCmd.Flags(), false)
	templateEditCmd.Flags().StringVar(&editFlags.title, "title", "", "New title")

	templateListCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status (draft, active, paused, archived)")
	templateListCmd.Flags().StringVarP(&listSearch, "search", "q", "", "Fuzzy search by title")

	templateDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Also delete the template's instances")
	templateDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")

	templateExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")

	templateCmd.AddCommand(templateCreateCmd, templateListCmd, templateShowCmd, templateEditCmd,
		templateActivateCmd, templatePauseCmd, templateArchiveCmd, templateDeleteCmd,
		templateExportCmd, templateImportCmd)
}

func (f *templateFlags) register(fs *pflag.FlagSet, create bool) {
	fs.StringVarP(&f.description, "description", "d", "", "Description")
	fs.StringVar(&f.kind, "kind", "", "Time kind: all_day, timed, time_range (default: inferred)")
	fs.StringVar(&f.start, "start", "", `First occurrence, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD"`)
	fs.StringVar(&f.end, "end", "", "End of the first occurrence")
	fs.StringVarP(&f.repeat, "repeat", "r", "", "Recurrence: none, daily, weekly, monthly, yearly, custom")
	fs.IntVar(&f.interval, "interval", 1, "Repeat every N periods")
	fs.StringVar(&f.on, "on", "", "Weekdays for weekly repeats, e.g. mon,wed,fri")
	fs.StringVar(&f.days, "days", "", "Days of the month for monthly repeats, e.g. 1,15")
	fs.StringVar(&f.cron, "cron", "", "Cron expression for custom repeats")
	fs.StringVar(&f.until, "until", "", "Last date to repeat on")
	fs.IntVar(&f.count, "count", 0, "Stop after this many occurrences")
	fs.StringVarP(&f.alerts, "alert", "a", "", "Reminders as minutes before the start, e.g. 10,60")
	fs.StringVar(&f.channel, "channel", "", "Reminder channel: notification, sound, email")
	fs.StringVar(&f.message, "message", "", "Reminder message")
	fs.BoolVar(&f.noReschedule, "no-reschedule", false, "Forbid rescheduling generated instances")
	fs.IntVar(&f.maxDelay, "max-delay", 0, "Maximum days an instance may be moved (0: unlimited)")
	fs.BoolVar(&f.skipWeekends, "skip-weekends", false, "Do not generate on Saturdays and Sundays")
	fs.BoolVar(&f.skipHolidays, "skip-holidays", false, "Do not generate on configured holidays")
	fs.BoolVar(&f.workingHours, "working-hours", false, "Only generate inside the configured workday")
	fs.StringVar(&f.category, "category", "", "Category")
	fs.StringVarP(&f.tags, "tags", "t", "", "Comma-separated tags")
	fs.IntVar(&f.priority, "priority", 0, "Priority from 1 to 5")
	fs.IntVar(&f.difficulty, "difficulty", 0, "Difficulty from 1 to 5")
	fs.StringVar(&f.estimate, "estimate", "", "Estimated duration, e.g. 45m")
	if create {
		_ = cobra.MarkFlagRequired(fs, "start")
	}
}

// definition builds a file-form template from the flags.
func (f *templateFlags) definition(title string) (templatefile.Definition, error) {
	def := templatefile.Definition{
		Title:       title,
		Description: f.description,
		Kind:        f.kind,
		Start:       f.start,
		End:         f.end,
	}
	if err := f.applyRecurrence(&def, nil); err != nil {
		return def, err
	}
	if err := f.applyReminders(&def, nil); err != nil {
		return def, err
	}
	f.applyPolicy(&def, nil)
	f.applyMetadata(&def, nil)
	return def, nil
}

// patch turns the changed flags into a template patch.
func (f *templateFlags) patch(fs *pflag.FlagSet, tmpl *domain.TaskTemplate) (domain.TemplatePatch, error) {
	var patch domain.TemplatePatch
	changed := func(names []string) bool {
		for _, n := range names {
			if fs.Changed(n) {
				return true
			}
		}
		return false
	}

	def := templatefile.FromTemplate(tmpl)
	if fs.Changed("title") {
		def.Title = f.title
		patch.Title = &f.title
	}
	if fs.Changed("description") {
		patch.Description = &f.description
	}
	if fs.Changed("kind") {
		def.Kind = f.kind
	}
	if fs.Changed("start") {
		def.Start = f.start
	}
	if fs.Changed("end") {
		def.End = f.end
	}
	if changed([]string{"repeat", "interval", "on", "days", "cron", "until", "count"}) {
		if err := f.applyRecurrence(&def, fs); err != nil {
			return patch, err
		}
	}
	if changed(reminderFlagNames) {
		if err := f.applyReminders(&def, fs); err != nil {
			return patch, err
		}
	}
	if changed(policyFlagNames) {
		f.applyPolicy(&def, fs)
	}
	if changed(metadataFlagNames) {
		f.applyMetadata(&def, fs)
	}

	req, err := def.Request(timezone())
	if err != nil {
		return patch, err
	}
	if changed(timeFlagNames) {
		patch.Time = &req.Time
	}
	if changed(reminderFlagNames) {
		patch.Reminders = &req.Reminders
	}
	if changed(policyFlagNames) {
		patch.Policy = req.Policy
	}
	if changed(metadataFlagNames) {
		patch.Metadata = req.Metadata
	}
	if patch.Title == nil && patch.Description == nil && patch.Time == nil &&
		patch.Reminders == nil && patch.Policy == nil && patch.Metadata == nil {
		return patch, errors.New("nothing to change; pass at least one flag")
	}
	return patch, nil
}

// set reports whether a flag should override the current value. A nil
// flag set means every flag applies.
func set(fs *pflag.FlagSet, name string) bool {
	return fs == nil || fs.Changed(name)
}

func (f *templateFlags) applyRecurrence(def *templatefile.Definition, fs *pflag.FlagSet) error {
	rec := def.Recurrence
	if rec == nil {
		rec = &templatefile.Recurrence{Kind: string(domain.RecurrenceNone)}
	}
	if set(fs, "repeat") && f.repeat != "" {
		rec.Kind = f.repeat
	}
	if set(fs, "interval") {
		rec.Interval = f.interval
	}
	if set(fs, "on") {
		rec.Weekdays = splitList(f.on)
	}
	if set(fs, "days") {
		days, err := parseInts(f.days)
		if err != nil {
			return fmt.Errorf("invalid --days: %w", err)
		}
		rec.Days = days
	}
	if set(fs, "cron") {
		rec.Expression = f.cron
	}
	if set(fs, "until") {
		rec.Until = f.until
		if f.until != "" {
			rec.Count = 0
		}
	}
	if set(fs, "count") {
		rec.Count = f.count
		if f.count > 0 {
			rec.Until = ""
		}
	}
	if rec.Kind == string(domain.RecurrenceNone) {
		def.Recurrence = nil
		return nil
	}
	def.Recurrence = rec
	return nil
}

func (f *templateFlags) applyReminders(def *templatefile.Definition, fs *pflag.FlagSet) error {
	if def.Reminders == nil {
		def.Reminders = &templatefile.Reminders{}
	}
	if set(fs, "alert") {
		def.Reminders.Alerts = nil
		for _, raw := range splitList(f.alerts) {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid --alert %q: want minutes before the start", raw)
			}
			def.Reminders.Alerts = append(def.Reminders.Alerts, templatefile.Alert{MinutesBefore: &n})
		}
		enabled := len(def.Reminders.Alerts) > 0
		def.Reminders.Enabled = &enabled
	}
	for i := range def.Reminders.Alerts {
		if set(fs, "channel") && f.channel != "" {
			def.Reminders.Alerts[i].Channel = f.channel
		}
		if set(fs, "message") {
			def.Reminders.Alerts[i].Message = f.message
		}
	}
	if len(def.Reminders.Alerts) == 0 && def.Reminders.Enabled == nil {
		def.Reminders = nil
	}
	return nil
}

func (f *templateFlags) applyPolicy(def *templatefile.Definition, fs *pflag.FlagSet) {
	if def.Policy == nil {
		allow := true
		def.Policy = &templatefile.Policy{AllowReschedule: &allow}
	}
	p := def.Policy
	if set(fs, "no-reschedule") {
		allow := !f.noReschedule
		p.AllowReschedule = &allow
	}
	if set(fs, "max-delay") {
		p.MaxDelayDays = f.maxDelay
	}
	if set(fs, "skip-weekends") {
		p.SkipWeekends = f.skipWeekends
	}
	if set(fs, "skip-holidays") {
		p.SkipHolidays = f.skipHolidays
	}
	if set(fs, "working-hours") {
		p.WorkingHoursOnly = f.workingHours
	}
}

func (f *templateFlags) applyMetadata(def *templatefile.Definition, fs *pflag.FlagSet) {
	if fs == nil && f.category == "" && f.tags == "" && f.priority == 0 && f.difficulty == 0 && f.estimate == "" {
		return
	}
	if def.Metadata == nil {
		def.Metadata = &templatefile.Metadata{}
	}
	m := def.Metadata
	if set(fs, "category") {
		m.Category = f.category
	}
	if set(fs, "tags") {
		m.Tags = splitList(f.tags)
	}
	if set(fs, "priority") {
		m.Priority = f.priority
	}
	if set(fs, "difficulty") {
		m.Difficulty = f.difficulty
	}
	if set(fs, "estimate") {
		m.Estimate = f.estimate
	}
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, item := range splitList(s) {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func runTransition(cmd *cobra.Command, arg, verb string, fn func(context.Context, string) (*domain.TaskTemplate, error)) error {
	ctx := context.Background()
	id, err := templateID(ctx, arg)
	if err != nil {
		return err
	}
	tmpl, err := fn(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, templateJSON(tmpl))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Template %s: %s\n", verb, tmpl.Title)
	return nil
}

func templateLookupError(id string, err error) error {
	if errors.Is(err, domain.ErrTemplateNotFound) {
		return fmt.Errorf("template not found: %s", id)
	}
	return fmt.Errorf("failed to get template: %w", err)
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
