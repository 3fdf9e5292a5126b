package repository

import (
	"context"
	"time"

	"dailycode/internal/common/db"
	"dailycode/internal/verify/model"
)

// CompletionRepository records first-time solves. The (user, problem) primary
// key is the single point of truth for at-most-once rewards.
type CompletionRepository interface {
	Exists(ctx context.Context, tx db.Transaction, userID, problemID string) (bool, error)
	// Insert returns ErrAlreadyCompleted when the pair is already recorded.
	Insert(ctx context.Context, tx db.Transaction, completion model.Completion) error
}

type SQLCompletionRepository struct {
	dbProvider db.Provider
}

func NewCompletionRepository(provider db.Provider) *SQLCompletionRepository {
	return &SQLCompletionRepository{dbProvider: provider}
}

func (r *SQLCompletionRepository) Exists(ctx context.Context, tx db.Transaction, userID, problemID string) (bool, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return false, err
	}
	var one int
	err = querier.QueryRow(ctx,
		"SELECT 1 FROM completions WHERE user_id = ? AND problem_id = ?", userID, problemID,
	).Scan(&one)
	if err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *SQLCompletionRepository) Insert(ctx context.Context, tx db.Transaction, completion model.Completion) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	completedAt := completion.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	_, err = querier.Exec(ctx,
		"INSERT INTO completions (user_id, problem_id, language, completed_at) VALUES (?, ?, ?, ?)",
		completion.UserID, completion.ProblemID, completion.Language, completedAt.UTC())
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return ErrAlreadyCompleted
		}
		return err
	}
	return nil
}
