package cmd

import (
	"fmt"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
)

var jobsState string

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List notification jobs, or show one job and its delivery journal",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(cmd.Context())
		defer cancel()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			return showJob(cmd, args[0])
		}

		query := url.Values{}
		if jobsState != "" {
			query.Set("state", strings.ToUpper(jobsState))
		}
		var jobs []domain.NotificationJob
		raw, err := adminGet(ctx, "/admin/jobs", query, &jobs)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(out, raw)
		}
		if len(jobs) == 0 {
			fmt.Fprintln(out, "No jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tSTATE\tATTEMPTS\tENQUEUED AT\tLAST ERROR")
		for _, job := range jobs {
			lastErr := job.LastError
			if job.State == domain.JobStateFailed {
				lastErr = job.FailureReason
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				job.ID,
				job.State,
				job.AttemptCount,
				job.EnqueuedAt.Format(time.RFC3339),
				lastErr,
			)
		}
		return w.Flush()
	},
}

func showJob(cmd *cobra.Command, jobID string) error {
	ctx, cancel := NewCommandContext(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	var job domain.NotificationJob
	raw, err := adminGet(ctx, "/admin/jobs/"+url.PathEscape(jobID), nil, &job)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(out, raw)
	}

	fmt.Fprintf(out, "Job:       %s\n", job.ID)
	fmt.Fprintf(out, "State:     %s\n", job.State)
	fmt.Fprintf(out, "Attempts:  %d\n", job.AttemptCount)
	if job.Receipt != nil {
		fmt.Fprintf(out, "Message:   %s\n", job.Receipt.MessageID)
	}
	if job.FailureReason != "" {
		fmt.Fprintf(out, "Failure:   %s\n", job.FailureReason)
	}

	var entries []domain.JournalEntry
	if _, err := adminGet(ctx, "/admin/jobs/"+url.PathEscape(jobID)+"/journal", nil, &entries); err != nil {
		// Journal is only mounted when a database is configured.
		return nil
	}
	if len(entries) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPT\tOUTCOME\tRECORDED AT\tDETAIL")
	for _, e := range entries {
		detail := e.MessageID
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Attempt, e.Outcome, e.RecordedAt.Format(time.RFC3339), detail)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVar(&jobsState, "state", "", "filter by state (PENDING, SENDING, DELIVERED, FAILED)")
}
