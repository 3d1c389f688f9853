package entity

import (
	"fmt"
	"math"
	"time"
)

// JobUpdate is a partial patch: nil fields are left untouched.
type JobUpdate struct {
	// Expect, when set, makes the update conditional on the current status.
	Expect *JobStatus

	Status   *JobStatus
	Progress *int
	Message  *string

	Title     *string
	Content   *string
	WordCount *int
	Images    []string
	Rating    *Rating

	Error     *string
	ErrorType *ErrorType
	Timestamp *time.Time
}

// Apply merges u into dst (the modify half of every store's read-modify-write).
// It enforces the lifecycle rules: one-directional transitions, terminal states
// are final, progress never moves backwards before a terminal state, and a
// completed record carries the full result. dst is untouched on error.
func (u JobUpdate) Apply(dst *Job, now time.Time) error {
	j := *dst
	if u.Expect != nil && j.Status != *u.Expect {
		return fmt.Errorf("%w: want %s, have %s", ErrStatusConflict, *u.Expect, j.Status)
	}
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, j.Status)
	}

	next := j.Status
	if u.Status != nil {
		if !u.Status.Valid() || !CanTransition(j.Status, *u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *u.Status)
		}
		next = *u.Status
	}

	if u.Progress != nil {
		p := *u.Progress
		if p < 0 || p > 100 {
			return fmt.Errorf("progress out of range: %d", p)
		}
		if p < j.Progress {
			return fmt.Errorf("%w: %d -> %d", ErrProgressRegression, j.Progress, p)
		}
		j.Progress = p
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Title != nil {
		j.Title = *u.Title
	}
	if u.Content != nil {
		j.Content = *u.Content
	}
	if u.WordCount != nil {
		j.WordCount = *u.WordCount
	}
	if u.Images != nil {
		j.Images = append([]string(nil), u.Images...)
	}
	if u.Rating != nil {
		r := *u.Rating
		j.Rating = &r
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	if u.ErrorType != nil {
		j.ErrorType = *u.ErrorType
	}
	if u.Timestamp != nil {
		ts := *u.Timestamp
		j.Timestamp = &ts
	}

	if next == StatusCompleted {
		if err := checkComplete(&j); err != nil {
			return err
		}
	}
	if next == StatusFailed && (j.Error == "" || j.ErrorType == "" || j.Timestamp == nil) {
		return fmt.Errorf("%w: failed job needs error, error_type and timestamp", ErrInvalidTransition)
	}

	j.Status = next
	j.UpdatedAt = now
	*dst = j
	return nil
}

func checkComplete(j *Job) error {
	switch {
	case j.Title == "":
		return fmt.Errorf("%w: title", ErrIncompleteResult)
	case j.Content == "" || j.WordCount <= 0:
		return fmt.Errorf("%w: content", ErrIncompleteResult)
	case len(j.Images) == 0:
		return fmt.Errorf("%w: images", ErrIncompleteResult)
	case j.Rating == nil || math.IsNaN(j.Rating.Score) || math.IsInf(j.Rating.Score, 0):
		return fmt.Errorf("%w: rating", ErrIncompleteResult)
	}
	return nil
}

// helpers for building patches

func StatusPtr(s JobStatus) *JobStatus { return &s }
func IntPtr(v int) *int                { return &v }
func StringPtr(v string) *string       { return &v }
func ErrorTypePtr(t ErrorType) *ErrorType {
	return &t
}
