package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/leadflow/internal/automation"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the lead automation once",
		Long: `Load the lead sheet, send welcome and follow-up emails to the leads that
are due one, write the updated statuses back and mail the daily summary to
the agent.

The command exits non-zero when the sheet could not be loaded or saved, the
mail service was unavailable, or the summary could not be sent. Individual
lead send failures are reported but do not fail the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

func runOnce(out, logOut io.Writer) error {
	cfg, logger, err := loadSettings(logOut)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := newProvider(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown instrumentation provider", "error", err.Error())
		}
	}()

	runner, err := buildRunner(ctx, cfg, logger, runnerOptions{metrics: provider.Metrics()})
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx, automation.TriggerCLI)
	if res != nil {
		printResult(out, res)
	}
	return err
}

func printResult(w io.Writer, res *automation.Result) {
	fmt.Fprintf(w, "Run %s (%s)\n", res.RunID, res.Date)
	fmt.Fprintf(w, "  welcomed:     %d\n", res.Welcomed)
	fmt.Fprintf(w, "  followed up:  %d\n", res.FollowedUp)
	fmt.Fprintf(w, "  skipped:      %d\n", res.Skipped)
	fmt.Fprintf(w, "  failed:       %d\n", res.Failed)
	if res.Deferred > 0 {
		fmt.Fprintf(w, "  deferred:     %d\n", res.Deferred)
	}
	if res.DataIssues > 0 {
		fmt.Fprintf(w, "  data issues:  %d\n", res.DataIssues)
	}
	fmt.Fprintf(w, "Summary: %d leads, %d pending follow-ups, %d contacted today",
		res.Summary.Total, res.Summary.Pending, res.Summary.ContactedToday)
	if res.SummarySent {
		fmt.Fprint(w, " (mailed to agent)")
	}
	fmt.Fprintln(w)
}
