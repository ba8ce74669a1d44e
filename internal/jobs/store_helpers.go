package jobs

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const jobColumns = "id, request_id, qiita_job_id, prep_id, artifact_type, status, step, verdict, error_kind, error_message, table_path, archive_key, created_at, updated_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		prepID       sql.NullString
		artifactType sql.NullString
		statusStr    string
		step         sql.NullString
		verdict      sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		tablePath    sql.NullString
		archiveKey   sql.NullString
		createdRaw   string
		updatedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.RequestID,
		&job.QiitaJobID,
		&prepID,
		&artifactType,
		&statusStr,
		&step,
		&verdict,
		&errorKind,
		&errorMessage,
		&tablePath,
		&archiveKey,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job.PrepID = prepID.String
	job.ArtifactType = artifactType.String
	job.Status = Status(statusStr)
	job.Step = step.String
	job.Verdict = verdict.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	job.TablePath = tablePath.String
	job.ArchiveKey = archiveKey.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
