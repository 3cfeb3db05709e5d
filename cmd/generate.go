package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/adapters/templatefile"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/services"
)

var (
	generateCount int
	generateFrom  string
	generateTo    string
	generateRange bool
)

// generateCmd expands a template into concrete instances
var generateCmd = &cobra.Command{
	Use:   "generate [template-id]",
	Short: "Generate instances from an active template",
	Long: `Generate task instances from an active template.

By default the next --count occurrences are generated. With --from and --to,
or with --range, every occurrence in the date range is generated instead;
--range spans the configured horizon starting today. Occurrences that
already have an instance are skipped.`,
	Example: `  cadence generate 3f2a --count 10
  cadence generate 3f2a --from 2025-01-01 --to 2025-03-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := templateID(ctx, args[0])
		if err != nil {
			return err
		}
		req, err := generateRequest()
		if err != nil {
			return err
		}

		report, err := app.templates.GenerateInstances(ctx, id, req)
		if err != nil {
			var terr *domain.TransitionError
			if errors.As(err, &terr) {
				return err
			}
			return fmt.Errorf("failed to generate instances: %w", err)
		}

		now := app.clock.Now()
		if jsonOutput {
			conflicts := make(map[string][]string, len(report.Conflicts))
			for id, others := range report.Conflicts {
				for _, o := range others {
					conflicts[id] = append(conflicts[id], o.ID)
				}
			}
			return printJSON(cmd, map[string]interface{}{
				"template_id": report.Template.ID,
				"generated":   len(report.Instances),
				"skipped":     report.Skipped,
				"existing":    report.Existing,
				"truncated":   report.Truncated,
				"instances":   instancesJSON(report.Instances, now),
				"conflicts":   conflicts,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Generated %d instance(s) of '%s'\n", len(report.Instances), report.Template.Title)
		if len(report.Instances) > 0 {
			renderInstances(cmd, report.Instances, now)
		}
		if report.Existing > 0 {
			fmt.Fprintf(out, "   %d occurrence(s) already had an instance\n", report.Existing)
		}
		if report.Skipped > 0 {
			fmt.Fprintf(out, "   %d occurrence(s) skipped by the scheduling policy\n", report.Skipped)
		}
		if report.Truncated {
			fmt.Fprintln(out, "⚠️  Generation stopped early; the recurrence produced too many candidates.")
		}
		for _, inst := range report.Instances {
			others := report.Conflicts[inst.ID]
			if len(others) == 0 {
				continue
			}
			fmt.Fprintf(out, "⚠️  %s on %s overlaps:", shortID(inst.ID), formatMoment(inst.Time.Scheduled))
			for _, o := range others {
				fmt.Fprintf(out, " %s (%s)", o.Title, shortID(o.ID))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 0, "Number of upcoming occurrences (default: generation.max_instances)")
	generateCmd.Flags().StringVar(&generateFrom, "from", "", "Range start date (YYYY-MM-DD)")
	generateCmd.Flags().StringVar(&generateTo, "to", "", "Range end date, inclusive (YYYY-MM-DD)")
	generateCmd.Flags().BoolVar(&generateRange, "range", false, "Generate over the configured horizon from today")
}

func generateRequest() (services.GenerateRequest, error) {
	req := services.GenerateRequest{Count: generateCount}
	if generateFrom == "" && generateTo == "" && !generateRange {
		return req, nil
	}

	tz := timezone()
	from := app.clock.Now().StartOfDay()
	if generateFrom != "" {
		m, _, err := templatefile.ParseMoment(generateFrom, tz)
		if err != nil {
			return req, fmt.Errorf("invalid --from: %w", err)
		}
		from = m
	}

	horizon := 30
	if app.config != nil && app.config.Generation.HorizonDays > 0 {
		horizon = app.config.Generation.HorizonDays
	}
	to := from.AddDays(horizon).EndOfDay()
	if generateTo != "" {
		m, dateOnly, err := templatefile.ParseMoment(generateTo, tz)
		if err != nil {
			return req, fmt.Errorf("invalid --to: %w", err)
		}
		if dateOnly {
			m = m.EndOfDay()
		}
		to = m
	}
	if to.Before(from) {
		return req, errors.New("--to must not be before --from")
	}

	req.From, req.To = &from, &to
	return req, nil
}
