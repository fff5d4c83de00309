package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ticketry/internal/triage"
)

func newOpenCmd(a *app) *cobra.Command {
	var limit, parallel int
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Triage the oldest open tickets and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}
			results, err := a.svc.TriageOpen(cmd.Context(), limit, parallel)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), results)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 3, "maximum number of open tickets to triage")
	f.IntVar(&parallel, "parallel", 1, "tickets triaged concurrently")
	return cmd
}

// writeSummary prints one block per result followed by the average
// processing time.
func writeSummary(w io.Writer, results []*triage.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No open tickets to triage.")
		return
	}

	fmt.Fprintf(w, "Triaged %d open tickets\n", len(results))
	var total time.Duration
	for _, r := range results {
		d := r.Decision
		fmt.Fprintf(w, "\nTicket %s:\n", r.TicketID)
		fmt.Fprintf(w, "  Category: %s (confidence: %.1f%%)\n", d.Category, d.Confidence*100)
		fmt.Fprintf(w, "  Priority: %s\n", d.Priority)
		fmt.Fprintf(w, "  Team: %s\n", d.AssignedTeam)
		fmt.Fprintf(w, "  Processing time: %dms\n", r.ProcessingTime.Milliseconds())
		if d.NeedsHumanReview {
			fmt.Fprintln(w, "  Flagged for human review")
		}
		if failed := r.Workflow.Failed(); len(failed) > 0 {
			fmt.Fprintf(w, "  Failed actions: %d\n", len(failed))
		}
		total += r.ProcessingTime
	}

	avg := total / time.Duration(len(results))
	fmt.Fprintf(w, "\nAverage processing time: %dms\n", avg.Milliseconds())
}
