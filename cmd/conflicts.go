package cmd

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// conflictsCmd reports overlapping open instances
var conflictsCmd = &cobra.Command{
	Use:   "conflicts [instance-id]",
	Short: "Show overlapping instances",
	Long: `Show the open instances that overlap the given instance, or every
overlapping pair when no instance is given. Instances without an end time
are assumed to take their estimated or default duration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 1 {
			return showInstanceConflicts(ctx, cmd, args[0])
		}

		pairs, err := app.instances.AllConflicts(ctx)
		if err != nil {
			return fmt.Errorf("failed to detect conflicts: %w", err)
		}

		if jsonOutput {
			list := make([]map[string]interface{}, 0, len(pairs))
			for _, c := range pairs {
				list = append(list, map[string]interface{}{
					"a":             c.A.ID,
					"b":             c.B.ID,
					"overlap_start": formatMoment(c.OverlapStart),
					"overlap_end":   formatMoment(c.OverlapEnd),
					"overlap_mins":  int(c.OverlapEnd.Sub(c.OverlapStart).Minutes()),
				})
			}
			return printJSON(cmd, map[string]interface{}{"conflicts": list, "count": len(list)})
		}

		if len(pairs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "✅ No conflicts.")
			return nil
		}
		tw := newTable(cmd, table.Row{"First", "Second", "Overlap", "Length"})
		for _, c := range pairs {
			tw.AppendRow(table.Row{
				fmt.Sprintf("%s %s", shortID(c.A.ID), c.A.Title),
				fmt.Sprintf("%s %s", shortID(c.B.ID), c.B.Title),
				formatMoment(c.OverlapStart),
				formatMinutes(c.OverlapEnd.Sub(c.OverlapStart)),
			})
		}
		tw.Render()
		return nil
	},
}

func showInstanceConflicts(ctx context.Context, cmd *cobra.Command, arg string) error {
	id, err := instanceID(ctx, arg)
	if err != nil {
		return err
	}
	conflicts, err := app.instances.DetectConflicts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to detect conflicts: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]interface{}{
			"instance_id": id,
			"conflicts":   instancesJSON(conflicts, app.clock.Now()),
			"count":       len(conflicts),
		})
	}
	if len(conflicts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "✅ No conflicts.")
		return nil
	}
	printConflicts(cmd, conflicts)
	return nil
}
