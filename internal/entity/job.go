package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusInit       JobStatus = "init"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusInit, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition allows Init -> InProgress -> {Completed|Failed} and self-transitions
// of non-terminal states (progress/message updates).
func CanTransition(from, to JobStatus) bool {
	switch from {
	case StatusInit:
		return to == StatusInit || to == StatusInProgress
	case StatusInProgress:
		return to == StatusInProgress || to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeStage       ErrorType = "stage_failure"
	ErrorTypeRace        ErrorType = "race_failure"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeTimeout     ErrorType = "timeout"
)

type Rating struct {
	Score  float64 `json:"score"`
	Review string  `json:"review"`
}

type Job struct {
	TrackingID uuid.UUID `json:"tracking_id"`
	Idea       string    `json:"idea"`
	Tone       string    `json:"tone"`
	Priority   int       `json:"priority"`

	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`

	// filled on completed
	Title     string   `json:"title,omitempty"`
	Content   string   `json:"content,omitempty"`
	WordCount int      `json:"word_count,omitempty"`
	Images    []string `json:"images,omitempty"`
	Rating    *Rating  `json:"rating,omitempty"`

	// filled on failed
	Error     string     `json:"error,omitempty"`
	ErrorType ErrorType  `json:"error_type,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob builds a fresh Init record for a submission.
func NewJob(idea, tone string, priority int, now time.Time) *Job {
	return &Job{
		TrackingID: uuid.New(),
		Idea:       idea,
		Tone:       tone,
		Priority:   priority,
		Status:     StatusInit,
		Progress:   0,
		Message:    "Job created",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
