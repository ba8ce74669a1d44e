package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"biomtype/internal/jobs"
)

const jobTimeLayout = "2006-01-02 15:04:05"

var statusTitle = cases.Title(language.English)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the local job ledger",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsPruneCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent validation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			ledger, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close()

			list, err := ledger.List(cmd.Context(), limit, statuses...)
			if err != nil {
				return err
			}
			if jsonOutput {
				views := make([]jobView, 0, len(list))
				for _, job := range list {
					views = append(views, newJobView(job))
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.QiitaJobID,
					statusTitle.String(string(job.Status)),
					job.Verdict,
					job.UpdatedAt.Local().Format(jobTimeLayout),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Qiita Job", "Status", "Verdict", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))

			counts, err := ledger.Counts(cmd.Context())
			if err != nil {
				return err
			}
			totals := make([]string, 0, len(jobs.Statuses()))
			for _, status := range jobs.Statuses() {
				totals = append(totals, fmt.Sprintf("%s %d", status, counts[status]))
			}
			fmt.Fprintf(out, "Totals: %s\n", strings.Join(totals, ", "))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (running, succeeded, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <ledger-id|qiita-job-id>",
		Short: "Show one validation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close()

			job, err := lookupJob(cmd.Context(), ledger, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, newJobView(job))
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func newJobsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Reclaim abandoned runs and delete old finished ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("lock %s: %w", cfg.LockPath(), err)
			}
			if !locked {
				return fmt.Errorf("another prune holds %s", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			ledger, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close()

			now := time.Now()
			var reclaimed int64
			if staleAfter > 0 {
				reclaimed, err = ledger.ReclaimStale(cmd.Context(), now.Add(-staleAfter))
				if err != nil {
					return err
				}
			}
			pruned, err := ledger.Prune(cmd.Context(), now.Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stale run(s), pruned %d finished run(s)\n", reclaimed, pruned)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete finished runs older than this")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 24*time.Hour, "Mark running runs idle this long as failed (0 disables)")
	return cmd
}

type jobView struct {
	ID           int64      `json:"id"`
	RequestID    string     `json:"request_id"`
	QiitaJobID   string     `json:"qiita_job_id"`
	PrepID       string     `json:"prep_id,omitempty"`
	ArtifactType string     `json:"artifact_type,omitempty"`
	Status       string     `json:"status"`
	Step         string     `json:"step,omitempty"`
	Verdict      string     `json:"verdict,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	TablePath    string     `json:"table_path,omitempty"`
	ArchiveKey   string     `json:"archive_key,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func newJobView(job *jobs.Job) jobView {
	return jobView{
		ID:           job.ID,
		RequestID:    job.RequestID,
		QiitaJobID:   job.QiitaJobID,
		PrepID:       job.PrepID,
		ArtifactType: job.ArtifactType,
		Status:       string(job.Status),
		Step:         job.Step,
		Verdict:      job.Verdict,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		TablePath:    job.TablePath,
		ArchiveKey:   job.ArchiveKey,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		FinishedAt:   job.FinishedAt,
	}
}

// lookupJob resolves a numeric ledger id first, then a Qiita job id.
func lookupJob(ctx context.Context, ledger *jobs.Store, ref string) (*jobs.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("job reference is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		job, err := ledger.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
	}
	job, err := ledger.FindByJobID(ctx, ref)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", ref)
	}
	return job, nil
}

func printJob(out io.Writer, job *jobs.Job) {
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("Job %d", job.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job), statusTitle.String(string(job.Status)), colorize))
	fields := []struct{ label, value string }{
		{"Qiita job", job.QiitaJobID},
		{"Request", job.RequestID},
		{"Prep", job.PrepID},
		{"Artifact type", job.ArtifactType},
		{"Step", job.Step},
		{"Verdict", job.Verdict},
		{"Error kind", job.ErrorKind},
		{"Message", job.ErrorMessage},
		{"Table", job.TablePath},
		{"Archive", job.ArchiveKey},
		{"Created", job.CreatedAt.Local().Format(jobTimeLayout)},
		{"Updated", job.UpdatedAt.Local().Format(jobTimeLayout)},
	}
	if job.FinishedAt != nil {
		fields = append(fields, struct{ label, value string }{"Finished", job.FinishedAt.Local().Format(jobTimeLayout)})
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintln(out, renderStatusLine(f.label, statusInfo, f.value, false))
	}
	fmt.Fprintln(out, renderStatusLine("Archived", statusInfo, yesNo(job.ArchiveKey != ""), false))
}

func jobStatusKind(job *jobs.Job) statusKind {
	switch job.Status {
	case jobs.StatusSucceeded:
		return statusOK
	case jobs.StatusFailed:
		return statusError
	default:
		return statusWarn
	}
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	var statuses []jobs.Status
	for _, value := range values {
		status := jobs.Status(strings.ToLower(strings.TrimSpace(value)))
		valid := false
		for _, known := range jobs.Statuses() {
			if status == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
