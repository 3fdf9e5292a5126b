package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dailycode/internal/common/db"
	"dailycode/internal/verify/model"
)

// LearnerRepository reads and writes the reward and hint state of a learner.
type LearnerRepository interface {
	Get(ctx context.Context, tx db.Transaction, learnerID string) (model.Learner, error)
	// GetForUpdate locks the row for the rest of tx where the dialect supports it.
	GetForUpdate(ctx context.Context, tx db.Transaction, learnerID string) (model.Learner, error)
	Create(ctx context.Context, tx db.Transaction, learner model.Learner) error
	UpdateProgress(ctx context.Context, tx db.Transaction, learner model.Learner) error
	UpdateHints(ctx context.Context, tx db.Transaction, learner model.Learner) error
}

type SQLLearnerRepository struct {
	dbProvider db.Provider
}

func NewLearnerRepository(provider db.Provider) *SQLLearnerRepository {
	return &SQLLearnerRepository{dbProvider: provider}
}

const learnerColumns = "id, xp, streak, max_streak, last_studied_at, plan, hints_used_today, last_hint_at"

func (r *SQLLearnerRepository) Get(ctx context.Context, tx db.Transaction, learnerID string) (model.Learner, error) {
	return r.get(ctx, tx, learnerID, "")
}

func (r *SQLLearnerRepository) GetForUpdate(ctx context.Context, tx db.Transaction, learnerID string) (model.Learner, error) {
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return model.Learner{}, err
	}
	return r.get(ctx, tx, learnerID, db.ForUpdate(database.Dialect()))
}

func (r *SQLLearnerRepository) get(ctx context.Context, tx db.Transaction, learnerID, suffix string) (model.Learner, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return model.Learner{}, err
	}
	var (
		l           model.Learner
		plan        string
		lastStudied sql.NullTime
		lastHint    sql.NullTime
	)
	err = querier.QueryRow(ctx, "SELECT "+learnerColumns+" FROM learners WHERE id = ?"+suffix, learnerID).
		Scan(&l.ID, &l.XP, &l.Streak, &l.MaxStreak, &lastStudied, &plan, &l.HintsUsedToday, &lastHint)
	if err != nil {
		if db.IsNoRows(err) {
			return model.Learner{}, ErrLearnerNotFound
		}
		return model.Learner{}, err
	}
	l.Plan = model.Plan(plan)
	l.LastStudiedAt = timePtr(lastStudied)
	l.LastHintAt = timePtr(lastHint)
	return l, nil
}

func (r *SQLLearnerRepository) Create(ctx context.Context, tx db.Transaction, learner model.Learner) error {
	if learner.ID == "" {
		return errors.New("learner id is required")
	}
	plan := learner.Plan
	if plan == "" {
		plan = model.PlanFree
	}
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx,
		"INSERT INTO learners ("+learnerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		learner.ID, learner.XP, learner.Streak, learner.MaxStreak, nullTime(learner.LastStudiedAt),
		string(plan), learner.HintsUsedToday, nullTime(learner.LastHintAt))
	return err
}

// UpdateProgress writes XP and streak state.
func (r *SQLLearnerRepository) UpdateProgress(ctx context.Context, tx db.Transaction, learner model.Learner) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	res, err := querier.Exec(ctx,
		"UPDATE learners SET xp = ?, streak = ?, max_streak = ?, last_studied_at = ? WHERE id = ?",
		learner.XP, learner.Streak, learner.MaxStreak, nullTime(learner.LastStudiedAt), learner.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpdateHints writes the hint counter and its timestamp.
func (r *SQLLearnerRepository) UpdateHints(ctx context.Context, tx db.Transaction, learner model.Learner) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	res, err := querier.Exec(ctx,
		"UPDATE learners SET hints_used_today = ?, last_hint_at = ? WHERE id = ?",
		learner.HintsUsedToday, nullTime(learner.LastHintAt), learner.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res db.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows failed: %w", err)
	}
	if n == 0 {
		return ErrLearnerNotFound
	}
	return nil
}
