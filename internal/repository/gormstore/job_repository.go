// Package gormstore is the gorm-backed job store: MySQL in production,
// SQLite for local runs and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blog-job-service/internal/entity"
)

type jobRow struct {
	TrackingID string `gorm:"primaryKey;size:36"`
	Idea       string `gorm:"type:text;not null"`
	Tone       string `gorm:"type:varchar(64);not null"`
	Priority   int    `gorm:"not null;default:1"`

	Status   string `gorm:"type:varchar(16);index;not null"`
	Progress int    `gorm:"not null;default:0"`
	Message  string `gorm:"type:text"`

	Title        string   `gorm:"type:text"`
	Content      string   `gorm:"type:longtext"`
	WordCount    int      `gorm:"not null;default:0"`
	Images       []string `gorm:"serializer:json;type:text"`
	RatingScore  *float64
	RatingReview *string `gorm:"type:text"`

	Error     string `gorm:"type:text"`
	ErrorType string `gorm:"type:varchar(32)"`
	FailedAt  *time.Time

	CreatedAt time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"index;autoUpdateTime:false"`
}

func (jobRow) TableName() string { return "blog_jobs" }

// Open connects with the named driver ("mysql" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case "mysql":
		dial = mysql.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver: %s", driver)
	}
	return gorm.Open(dial, &gorm.Config{})
}

// Migrate creates or updates the jobs table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&jobRow{})
}

type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	row := toRow(job)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&jobRow{}).Where("tracking_id = ?", row.TrackingID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", entity.ErrAlreadyExists, row.TrackingID)
		}
		return tx.Create(&row).Error
	})
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var row jobRow
	if err := r.db.WithContext(ctx).First(&row, "tracking_id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return fromRow(row)
}

func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, patch entity.JobUpdate) (*entity.Job, error) {
	var out *entity.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row jobRow
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&row, "tracking_id = ?", id.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entity.ErrNotFound
			}
			return err
		}

		job, err := fromRow(row)
		if err != nil {
			return err
		}
		if err := patch.Apply(job, r.now()); err != nil {
			return err
		}

		next := toRow(job)
		res := tx.Model(&jobRow{}).Where("tracking_id = ?", next.TrackingID).
			Select("*").Omit("tracking_id", "created_at").Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		// sqlite takes no row lock, so the row may be gone by now
		if res.RowsAffected == 0 {
			return entity.ErrNotFound
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&jobRow{}, "tracking_id = ?", id.String())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns every job, newest first.
func (r *JobRepository) List(ctx context.Context) ([]entity.Job, error) {
	var rows []jobRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	jobs := make([]entity.Job, 0, len(rows))
	for _, row := range rows {
		j, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, nil
}

func toRow(j *entity.Job) jobRow {
	row := jobRow{
		TrackingID: j.TrackingID.String(),
		Idea:       j.Idea,
		Tone:       j.Tone,
		Priority:   j.Priority,
		Status:     string(j.Status),
		Progress:   j.Progress,
		Message:    j.Message,
		Title:      j.Title,
		Content:    j.Content,
		WordCount:  j.WordCount,
		Images:     j.Images,
		Error:      j.Error,
		ErrorType:  string(j.ErrorType),
		FailedAt:   j.Timestamp,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
	if j.Rating != nil {
		score, review := j.Rating.Score, j.Rating.Review
		row.RatingScore = &score
		row.RatingReview = &review
	}
	return row
}

func fromRow(row jobRow) (*entity.Job, error) {
	id, err := uuid.Parse(row.TrackingID)
	if err != nil {
		return nil, fmt.Errorf("parse tracking id %q: %w", row.TrackingID, err)
	}
	j := &entity.Job{
		TrackingID: id,
		Idea:       row.Idea,
		Tone:       row.Tone,
		Priority:   row.Priority,
		Status:     entity.JobStatus(row.Status),
		Progress:   row.Progress,
		Message:    row.Message,
		Title:      row.Title,
		Content:    row.Content,
		WordCount:  row.WordCount,
		Images:     row.Images,
		Error:      row.Error,
		ErrorType:  entity.ErrorType(row.ErrorType),
		Timestamp:  row.FailedAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.RatingScore != nil {
		j.Rating = &entity.Rating{Score: *row.RatingScore}
		if row.RatingReview != nil {
			j.Rating.Review = *row.RatingReview
		}
	}
	return j, nil
}
