package cmd

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/labkit-dev/calsync/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage recurring operator jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the operator jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Jobs []domain.OperatorJob `json:"jobs"`
		}
		if err := api().Do(cmd.Context(), http.MethodGet, "/operator/jobs", nil, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tINTERVAL\tNEXT RUN\tRUNS\tFAILURES")
		for _, job := range resp.Jobs {
			interval := "-"
			if job.IntervalHours != nil {
				interval = fmt.Sprintf("%dh", *job.IntervalHours)
			}
			nextRun := "-"
			if job.NextRunAt != nil {
				nextRun = job.NextRunAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
				job.ID, job.Name, job.Status, interval, nextRun, job.RunCount, job.ConsecutiveFailures)
		}
		return w.Flush()
	},
}

var (
	jobName        string
	jobDescription string
	jobCommand     string
	jobInterval    int
	jobMaxRetries  int
	jobAutoRun     bool
)

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an operator job",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"name":          jobName,
			"description":   jobDescription,
			"command":       jobCommand,
			"autoRun":       jobAutoRun,
			"intervalHours": jobInterval,
		}
		if cmd.Flags().Changed("max-retries") {
			body["maxRetries"] = jobMaxRetries
		}

		var resp struct {
			Job domain.OperatorJob `json:"job"`
		}
		if err := api().Do(cmd.Context(), http.MethodPost, "/operator/jobs", body, &resp); err != nil {
			return err
		}
		fmt.Printf("Created job %s (%s).\n", resp.Job.ID, resp.Job.Name)
		return nil
	},
}

func jobStatusPatch(status string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Job domain.OperatorJob `json:"job"`
		}
		body := map[string]any{"status": status}
		if err := api().Do(cmd.Context(), http.MethodPatch, "/operator/jobs/"+args[0], body, &resp); err != nil {
			return err
		}
		fmt.Printf("Job %s is now %s.\n", resp.Job.ID, resp.Job.Status)
		return nil
	}
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Pause a job",
	Args:  cobra.ExactArgs(1),
	RunE:  jobStatusPatch(domain.JobStatusPaused),
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a paused job and make it due now",
	Args:  cobra.ExactArgs(1),
	RunE:  jobStatusPatch(domain.JobStatusQueued),
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api().Do(cmd.Context(), http.MethodDelete, "/operator/jobs/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("Deleted job %s.\n", args[0])
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Job domain.OperatorJob `json:"job"`
		}
		if err := api().Do(cmd.Context(), http.MethodPost, "/operator/jobs/"+args[0]+"/run", nil, &resp); err != nil {
			return err
		}
		if resp.Job.LastError != "" {
			fmt.Printf("Job %s ran and failed: %s\n", resp.Job.ID, resp.Job.LastError)
			return nil
		}
		fmt.Printf("Job %s ran successfully.\n", resp.Job.ID)
		if resp.Job.LastResult != "" {
			fmt.Println(resp.Job.LastResult)
		}
		return nil
	},
}

var jobsRunDueCmd = &cobra.Command{
	Use:   "run-due",
	Short: "Run every job that is due now",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Result domain.ScanResult `json:"result"`
		}
		if err := api().Do(cmd.Context(), http.MethodPost, "/operator/jobs/run-due", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Scanned %d jobs: %d due, %d ran, %d failed.\n",
			resp.Result.Scanned, resp.Result.Due, resp.Result.Ran, resp.Result.Failed)
		for _, outcome := range resp.Result.Results {
			if outcome.Success {
				fmt.Printf("  ok   %s (%s)\n", outcome.Name, outcome.JobID)
			} else {
				fmt.Printf("  fail %s (%s): %s\n", outcome.Name, outcome.JobID, outcome.Error)
			}
		}
		return nil
	},
}

func init() {
	jobsCreateCmd.Flags().StringVar(&jobName, "name", "", "job name (required)")
	jobsCreateCmd.Flags().StringVar(&jobDescription, "description", "", "job description")
	jobsCreateCmd.Flags().StringVar(&jobCommand, "command", "", "command passed to the executor (required)")
	jobsCreateCmd.Flags().IntVar(&jobInterval, "interval-hours", 0, "recurrence interval in hours; 0 means one-shot")
	jobsCreateCmd.Flags().IntVar(&jobMaxRetries, "max-retries", domain.JobDefaultRetries, "consecutive failures tolerated before auto-pause")
	jobsCreateCmd.Flags().BoolVar(&jobAutoRun, "auto-run", false, "schedule the job automatically")
	_ = jobsCreateCmd.MarkFlagRequired("name")
	_ = jobsCreateCmd.MarkFlagRequired("command")

	jobsCmd.AddCommand(jobsListCmd, jobsCreateCmd, jobsPauseCmd, jobsResumeCmd,
		jobsDeleteCmd, jobsRunCmd, jobsRunDueCmd)
	rootCmd.AddCommand(jobsCmd)
}
