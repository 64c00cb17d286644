package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/leadflow/internal/automation"
	"github.com/teemow/leadflow/internal/leads"
)

func newPlanCmd() *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do without sending or saving anything",
		Long: `Load the lead sheet and classify every lead as a run would, then print the
planned action per lead. Nothing is emailed and the sheet is not modified,
so no Gmail authorization is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadSettings(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runner, err := buildRunner(ctx, cfg, logger, runnerOptions{dryRun: true})
			if err != nil {
				return err
			}
			preview, err := runner.Plan(ctx)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), preview, showAll)
		},
	}

	cmd.Flags().BoolVar(&showAll, "all", false, "List leads that need no email too")
	return cmd
}

// writePlan prints preview as a table. Rows are numbered as in the
// spreadsheet, header being row 1.
func writePlan(w io.Writer, preview *automation.Preview, showAll bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tNAME\tEMAIL\tSTATUS\tDAYS\tACTION\tNOTE")

	due := 0
	for _, c := range preview.Classifications {
		if c.Action != leads.ActionNone {
			due++
		} else if !showAll && len(c.Issues) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Record.Row+2,
			orDash(c.Record.Name),
			orDash(c.Record.Email),
			orDash(c.Record.Status),
			daysColumn(c),
			c.Action,
			planNote(c),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := preview.Summary
	_, err := fmt.Fprintf(w, "\n%s: %d of %d leads due an email; %d pending follow-ups, %d contacted today\n",
		preview.Date.Format(leads.DefaultDateLayout), due, s.Total, s.Pending, s.ContactedToday)
	return err
}

func daysColumn(c leads.Classification) string {
	if !c.Contacted {
		return "never"
	}
	return strconv.Itoa(c.DaysSince)
}

func planNote(c leads.Classification) string {
	var notes []string
	if c.SkipReason != "" {
		notes = append(notes, "skipped: "+c.SkipReason)
	}
	for _, issue := range c.Issues {
		if c.SkipReason != "" && issue.Field == "email" {
			continue
		}
		notes = append(notes, fmt.Sprintf("invalid %s %q", issue.Field, issue.Value))
	}
	return orDash(strings.Join(notes, "; "))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
