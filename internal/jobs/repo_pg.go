package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres. Stages, project and artifacts are
// stored as JSONB documents on the jobs row.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, status, project, stages, artifacts, error_message, request_id,
       created_at, updated_at, started_at, completed_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (id, status, project, stages, artifacts, error_message, request_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	projectJSON, stagesJSON, artifactsJSON, err := marshalJob(job)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		string(job.Status),
		projectJSON,
		stagesJSON,
		artifactsJSON,
		nullString(job.Error),
		nullString(job.RequestID),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Get returns a job by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if missing(err) {
		return Job{}, ErrNotFound
	}
	return job, err
}

// Save replaces the mutable columns of a job.
func (r *PGRepo) Save(ctx context.Context, job Job) error {
	const query = `
UPDATE jobs
SET status = $2, stages = $3, artifacts = $4, error_message = $5,
    updated_at = $6, started_at = $7, completed_at = $8
WHERE id = $1`
	_, stagesJSON, artifactsJSON, err := marshalJob(job)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query,
		job.ID,
		string(job.Status),
		stagesJSON,
		artifactsJSON,
		nullString(job.Error),
		job.UpdatedAt,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
	)
	if missing(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim flips a queued job to processing in one statement, so concurrent
// workers cannot both win it.
func (r *PGRepo) Claim(ctx context.Context, id string) (Job, error) {
	query := `
UPDATE jobs
SET status = 'processing', started_at = $2, updated_at = $2
WHERE id = $1 AND status = 'queued'
RETURNING ` + jobColumns
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id, time.Now().UTC()))
	if err == nil {
		return job, nil
	}
	if missing(err) && !errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Job{}, err
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return Job{}, getErr
	}
	return Job{}, ErrNotQueued
}

// List returns jobs newest first with limit/offset.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// missing reports whether err means no row can match. Ids that are not
// UUIDs fail the column cast (invalid_text_representation) instead of
// matching nothing.
func missing(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job         Job
		status      string
		projectRaw  []byte
		stagesRaw   []byte
		artifacts   []byte
		errMsg      sql.NullString
		requestID   sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&job.ID,
		&status,
		&projectRaw,
		&stagesRaw,
		&artifacts,
		&errMsg,
		&requestID,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if err := json.Unmarshal(projectRaw, &job.Project); err != nil {
		return Job{}, fmt.Errorf("decode project for job %s: %w", job.ID, err)
	}
	if err := json.Unmarshal(stagesRaw, &job.Stages); err != nil {
		return Job{}, fmt.Errorf("decode stages for job %s: %w", job.ID, err)
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &job.Artifacts); err != nil {
			return Job{}, fmt.Errorf("decode artifacts for job %s: %w", job.ID, err)
		}
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if requestID.Valid {
		job.RequestID = requestID.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func marshalJob(job Job) (projectJSON, stagesJSON, artifactsJSON []byte, err error) {
	if projectJSON, err = json.Marshal(job.Project); err != nil {
		return nil, nil, nil, fmt.Errorf("encode project: %w", err)
	}
	stages := job.Stages
	if stages == nil {
		stages = []Stage{}
	}
	if stagesJSON, err = json.Marshal(stages); err != nil {
		return nil, nil, nil, fmt.Errorf("encode stages: %w", err)
	}
	if artifactsJSON, err = json.Marshal(job.Artifacts); err != nil {
		return nil, nil, nil, fmt.Errorf("encode artifacts: %w", err)
	}
	return projectJSON, stagesJSON, artifactsJSON, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
