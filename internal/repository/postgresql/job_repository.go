package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blog-job-service/internal/entity"
)

const uniqueViolation = "23505"

const jobColumns = `tracking_id, idea, tone, priority, status, progress, message,
title, content, word_count, images, rating_score, rating_review,
error, error_type, failed_at, created_at, updated_at`

type JobRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	images, err := json.Marshal(job.Images)
	if err != nil {
		return err
	}
	var score *float64
	var review *string
	if job.Rating != nil {
		score, review = &job.Rating.Score, &job.Rating.Review
	}

	const q = `
INSERT INTO blog_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
`
	_, err = r.pool.Exec(ctx, q,
		job.TrackingID, job.Idea, job.Tone, job.Priority, string(job.Status), job.Progress, job.Message,
		job.Title, job.Content, job.WordCount, images, score, review,
		job.Error, string(job.ErrorType), job.Timestamp, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", entity.ErrAlreadyExists, job.TrackingID)
		}
		return err
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM blog_jobs WHERE tracking_id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Update locks the row, merges the patch and writes the whole record back.
// A missing row is ErrNotFound: the record is never recreated here.
func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, patch entity.JobUpdate) (*entity.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const sel = `SELECT ` + jobColumns + ` FROM blog_jobs WHERE tracking_id = $1 FOR UPDATE;`
	job, err := scanJob(tx.QueryRow(ctx, sel, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}

	if err := patch.Apply(job, r.now()); err != nil {
		return nil, err
	}

	images, err := json.Marshal(job.Images)
	if err != nil {
		return nil, err
	}
	var score *float64
	var review *string
	if job.Rating != nil {
		score, review = &job.Rating.Score, &job.Rating.Review
	}

	const upd = `
UPDATE blog_jobs
SET status=$2, progress=$3, message=$4, title=$5, content=$6, word_count=$7, images=$8,
    rating_score=$9, rating_review=$10, error=$11, error_type=$12, failed_at=$13, updated_at=$14
WHERE tracking_id=$1;
`
	tag, err := tx.Exec(ctx, upd, id,
		string(job.Status), job.Progress, job.Message, job.Title, job.Content, job.WordCount, images,
		score, review, job.Error, string(job.ErrorType), job.Timestamp, job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, entity.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete reports whether a row was removed.
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blog_jobs WHERE tracking_id=$1;`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List returns every job, newest first.
func (r *JobRepository) List(ctx context.Context) ([]entity.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM blog_jobs ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []entity.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job         entity.Job
		statusText  string
		imagesBytes []byte
		score       *float64
		review      *string
		errType     string
	)
	if err := row.Scan(
		&job.TrackingID,
		&job.Idea,
		&job.Tone,
		&job.Priority,
		&statusText,
		&job.Progress,
		&job.Message,
		&job.Title,
		&job.Content,
		&job.WordCount,
		&imagesBytes, // NULL => nil
		&score,
		&review,
		&job.Error,
		&errType,
		&job.Timestamp,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	job.ErrorType = entity.ErrorType(errType)
	if len(imagesBytes) > 0 {
		if err := json.Unmarshal(imagesBytes, &job.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	if score != nil {
		job.Rating = &entity.Rating{Score: *score}
		if review != nil {
			job.Rating.Review = *review
		}
	}
	return &job, nil
}
