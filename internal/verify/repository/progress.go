package repository

import (
	"context"

	"dailycode/internal/common/db"
	"dailycode/internal/verify/model"
)

// ProgressRepository stores per-day solve counters.
type ProgressRepository interface {
	// Get returns a zero DailyProgress for the day when no row exists.
	Get(ctx context.Context, tx db.Transaction, userID, day string) (model.DailyProgress, error)
	Save(ctx context.Context, tx db.Transaction, progress model.DailyProgress) error
}

type SQLProgressRepository struct {
	dbProvider db.Provider
}

func NewProgressRepository(provider db.Provider) *SQLProgressRepository {
	return &SQLProgressRepository{dbProvider: provider}
}

func (r *SQLProgressRepository) Get(ctx context.Context, tx db.Transaction, userID, day string) (model.DailyProgress, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return model.DailyProgress{}, err
	}
	p := model.DailyProgress{UserID: userID, Day: day}
	err = querier.QueryRow(ctx,
		"SELECT problems_solved, target_met FROM daily_progress WHERE user_id = ? AND study_day = ?", userID, day,
	).Scan(&p.ProblemsSolved, &p.TargetMet)
	if err != nil {
		if db.IsNoRows(err) {
			return model.DailyProgress{UserID: userID, Day: day}, nil
		}
		return model.DailyProgress{}, err
	}
	return p, nil
}

// Save updates the day's row, inserting it on first use.
func (r *SQLProgressRepository) Save(ctx context.Context, tx db.Transaction, progress model.DailyProgress) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	var one int
	err = querier.QueryRow(ctx,
		"SELECT 1 FROM daily_progress WHERE user_id = ? AND study_day = ?", progress.UserID, progress.Day,
	).Scan(&one)
	switch {
	case err == nil:
		_, err = querier.Exec(ctx,
			"UPDATE daily_progress SET problems_solved = ?, target_met = ? WHERE user_id = ? AND study_day = ?",
			progress.ProblemsSolved, progress.TargetMet, progress.UserID, progress.Day)
		return err
	case db.IsNoRows(err):
		_, err = querier.Exec(ctx,
			"INSERT INTO daily_progress (user_id, study_day, problems_solved, target_met) VALUES (?, ?, ?, ?)",
			progress.UserID, progress.Day, progress.ProblemsSolved, progress.TargetMet)
		return err
	default:
		return err
	}
}
