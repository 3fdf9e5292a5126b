package repository

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrProblemNotFound   = errors.New("problem not found")
	ErrLearnerNotFound   = errors.New("learner not found")
	ErrAlreadyCompleted  = errors.New("problem already completed")
	ErrSubmissionMissing = errors.New("submission status not found")
)

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
