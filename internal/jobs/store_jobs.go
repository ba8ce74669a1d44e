package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoRunningJob is returned when a step or finish targets a job with no
// running row.
var ErrNoRunningJob = errors.New("no running job")

// Start records a new running job.
func (s *Store) Start(ctx context.Context, params StartParams) (*Job, error) {
	if strings.TrimSpace(params.RequestID) == "" {
		return nil, errors.New("request id is required")
	}
	jobID := params.QiitaJobID
	if jobID == "" {
		jobID = params.RequestID
	}
	timestamp := formatTime(time.Now())

	res, err := s.exec(
		ctx,
		`INSERT INTO validation_jobs (
            request_id, qiita_job_id, prep_id, artifact_type, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		params.RequestID,
		jobID,
		nullableString(params.PrepID),
		nullableString(params.ArtifactType),
		StatusRunning,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// UpdateStep stamps the running row of jobID with the current step.
func (s *Store) UpdateStep(ctx context.Context, jobID, step string) error {
	res, err := s.exec(
		ctx,
		`UPDATE validation_jobs SET step = ?, updated_at = ?
         WHERE qiita_job_id = ? AND status = ?`,
		step,
		formatTime(time.Now()),
		jobID,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return requireAffected(res, jobID)
}

// Finish records the terminal state of the running row of jobID.
func (s *Store) Finish(ctx context.Context, jobID string, result Result) error {
	status := StatusFailed
	if result.Success {
		status = StatusSucceeded
	}
	now := formatTime(time.Now())
	res, err := s.exec(
		ctx,
		`UPDATE validation_jobs
         SET status = ?, verdict = ?, error_kind = ?, error_message = ?, table_path = ?,
             archive_key = ?, updated_at = ?, finished_at = ?
         WHERE qiita_job_id = ? AND status = ?`,
		status,
		nullableString(result.Verdict),
		nullableString(result.ErrorKind),
		nullableString(result.ErrorMessage),
		nullableString(result.TablePath),
		nullableString(result.ArchiveKey),
		now,
		now,
		jobID,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return requireAffected(res, jobID)
}

// Get fetches a job by ledger identifier. A missing row yields (nil, nil).
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM validation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByJobID returns the most recent run of a Qiita job, or (nil, nil).
func (s *Store) FindByJobID(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM validation_jobs WHERE qiita_job_id = ? ORDER BY id DESC LIMIT 1`,
		jobID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by job id: %w", err)
	}
	return job, nil
}

// List returns up to limit jobs, newest first, optionally filtered by status.
// A non-positive limit returns every row.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM validation_jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Counts returns the number of jobs per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM validation_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// ReclaimStale marks running jobs not updated since cutoff as failed. Runs
// left behind by a crashed process would otherwise stay running forever.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.exec(
		ctx,
		`UPDATE validation_jobs
         SET status = ?, error_kind = 'abandoned', error_message = 'run did not finish',
             updated_at = ?, finished_at = ?
         WHERE status = ? AND updated_at < ?`,
		StatusFailed,
		now,
		now,
		StatusRunning,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes finished jobs older than cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(
		ctx,
		`DELETE FROM validation_jobs WHERE status != ? AND finished_at < ?`,
		StatusRunning,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w for %s", ErrNoRunningJob, jobID)
	}
	return nil
}
