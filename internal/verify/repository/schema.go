package repository

import (
	"context"
	"fmt"

	"dailycode/internal/common/db"
)

// schema is portable across mysql, postgres and sqlite. MySQL DSNs need
// parseTime=true so TIMESTAMP columns scan into time.Time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS problems (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		test_cases TEXT NOT NULL,
		signature TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learners (
		id VARCHAR(64) PRIMARY KEY,
		xp BIGINT NOT NULL DEFAULT 0,
		streak INT NOT NULL DEFAULT 0,
		max_streak INT NOT NULL DEFAULT 0,
		last_studied_at TIMESTAMP NULL,
		plan VARCHAR(16) NOT NULL DEFAULT 'FREE',
		hints_used_today INT NOT NULL DEFAULT 0,
		last_hint_at TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS completions (
		user_id VARCHAR(64) NOT NULL,
		problem_id VARCHAR(64) NOT NULL,
		language VARCHAR(32) NOT NULL,
		completed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, problem_id)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_progress (
		user_id VARCHAR(64) NOT NULL,
		study_day CHAR(10) NOT NULL,
		problems_solved INT NOT NULL DEFAULT 0,
		target_met BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, study_day)
	)`,
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, database db.Database) error {
	for _, stmt := range schema {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
