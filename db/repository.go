package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFound is returned when no history row matches a token.
var ErrJobNotFound = errors.New("db: job not found")

// Job statuses recorded in history.
const (
	JobStatusPending   = "pending"
	JobStatusReady     = "ready"
	JobStatusFailed    = "failed"
	JobStatusTimeout   = "timeout"
	JobStatusError     = "error"
	JobStatusAbandoned = "abandoned"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// JobRecord is one row of the jobs table.
type JobRecord struct {
	ID            int64
	CorrelationID string
	Token         string // empty when submission failed
	Prompt        string
	Negative      string
	Steps         int
	Model         string
	Size          string
	Orientation   string
	Status        string
	ImageRef      string // image URL, or a short description of an inline payload
	OutputPath    string
	CreditsUsed   uint64
	ErrorMessage  string
	DurationMS    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JobUpdate carries the outcome fields written by UpdateJobStatus. Empty
// strings and zero numbers leave the stored value untouched.
type JobUpdate struct {
	Status       string
	ImageRef     string
	OutputPath   string
	CreditsUsed  uint64
	ErrorMessage string
	Duration     time.Duration
}

// Repository reads and writes job history.
type Repository struct {
	db  *Database
	now func() time.Time
}

// NewRepository creates a Repository over database.
func NewRepository(database *Database) *Repository {
	return &Repository{db: database, now: time.Now}
}

// InsertJob stores rec and returns its ID. CreatedAt and UpdatedAt are set
// to the current time.
func (r *Repository) InsertJob(ctx context.Context, rec JobRecord) (int64, error) {
	conn, err := r.conn()
	if err != nil {
		return 0, err
	}
	if rec.CorrelationID == "" {
		return 0, fmt.Errorf("correlation id is required")
	}
	if rec.Status == "" {
		rec.Status = JobStatusPending
	}
	now := r.now().UTC().Format(timeLayout)

	result, err := conn.ExecContext(ctx, `
		INSERT INTO jobs (
			correlation_id, token, prompt, negative, steps, model, size,
			orientation, status, image_ref, output_path, credits_used,
			error_message, duration_ms, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CorrelationID, rec.Token, rec.Prompt, rec.Negative, rec.Steps,
		rec.Model, rec.Size, rec.Orientation, rec.Status, rec.ImageRef,
		rec.OutputPath, int64(rec.CreditsUsed), rec.ErrorMessage,
		rec.DurationMS, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// UpdateJobStatus records the outcome of the most recent job with token.
// It returns ErrJobNotFound when no row matches.
func (r *Repository) UpdateJobStatus(ctx context.Context, token string, update JobUpdate) error {
	conn, err := r.conn()
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	result, err := conn.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?,
			image_ref = CASE WHEN ? = '' THEN image_ref ELSE ? END,
			output_path = CASE WHEN ? = '' THEN output_path ELSE ? END,
			credits_used = CASE WHEN ? = 0 THEN credits_used ELSE ? END,
			error_message = CASE WHEN ? = '' THEN error_message ELSE ? END,
			duration_ms = CASE WHEN ? = 0 THEN duration_ms ELSE ? END,
			updated_at = ?
		WHERE id = (SELECT MAX(id) FROM jobs WHERE token = ?)`,
		update.Status,
		update.ImageRef, update.ImageRef,
		update.OutputPath, update.OutputPath,
		int64(update.CreditsUsed), int64(update.CreditsUsed),
		update.ErrorMessage, update.ErrorMessage,
		update.Duration.Milliseconds(), update.Duration.Milliseconds(),
		r.now().UTC().Format(timeLayout),
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: token %q", ErrJobNotFound, token)
	}
	return nil
}

// GetJobByToken returns the most recent job with token.
func (r *Repository) GetJobByToken(ctx context.Context, token string) (*JobRecord, error) {
	conn, err := r.conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx, selectJobs+` WHERE token = ? ORDER BY id DESC LIMIT 1`, token)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: token %q", ErrJobNotFound, token)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecentJobs returns up to limit jobs, newest first. A non-positive
// limit means 10.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	conn, err := r.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := conn.QueryContext(ctx, selectJobs+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

func (r *Repository) conn() (*sql.DB, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return r.db.live()
}

const selectJobs = `
	SELECT id, correlation_id, token, prompt, negative, steps, model, size,
		orientation, status, image_ref, output_path, credits_used,
		error_message, duration_ms, created_at, updated_at
	FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*JobRecord, error) {
	var (
		rec                  JobRecord
		credits              int64
		createdAt, updatedAt string
	)
	err := s.Scan(
		&rec.ID, &rec.CorrelationID, &rec.Token, &rec.Prompt, &rec.Negative,
		&rec.Steps, &rec.Model, &rec.Size, &rec.Orientation, &rec.Status,
		&rec.ImageRef, &rec.OutputPath, &credits, &rec.ErrorMessage,
		&rec.DurationMS, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job row: %w", err)
	}

	rec.CreditsUsed = uint64(credits)
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &rec, nil
}
