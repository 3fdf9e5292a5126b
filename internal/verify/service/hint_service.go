package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dailycode/internal/common/db"
	"dailycode/internal/verify/repository"
	"dailycode/internal/verify/reward"
	appErr "dailycode/pkg/errors"
	"dailycode/pkg/utils/logger"

	"go.uber.org/zap"
)

// HintService charges hints against the learner's daily quota.
type HintService struct {
	dbProvider db.Provider
	learners   repository.LearnerRepository
	policy     reward.Policy
	now        func() time.Time
}

func NewHintService(provider db.Provider, learners repository.LearnerRepository, policy reward.Policy, now func() time.Time) (*HintService, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is required")
	}
	if learners == nil {
		return nil, fmt.Errorf("learner repository is required")
	}
	if now == nil {
		now = time.Now
	}
	return &HintService{dbProvider: provider, learners: learners, policy: policy, now: now}, nil
}

// Consume charges one hint. The learner row is locked so two concurrent
// requests cannot both take the last hint.
func (s *HintService) Consume(ctx context.Context, userID string) (reward.HintState, error) {
	if strings.TrimSpace(userID) == "" {
		return reward.HintState{}, appErr.ValidationError("user_id", "required")
	}
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return reward.HintState{}, appErr.Wrapf(err, appErr.DatabaseError, "database unavailable")
	}
	var state reward.HintState
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		learner, err := s.learners.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		updated, next, err := s.policy.ConsumeHint(learner, s.now())
		if err != nil {
			return err
		}
		if err := s.learners.UpdateHints(ctx, tx, updated); err != nil {
			return err
		}
		state = next
		return nil
	})
	if err != nil {
		return reward.HintState{}, s.classify(ctx, userID, err)
	}
	logger.Info(ctx, "hint consumed", zap.String("user_id", userID), zap.Int("used", state.Used), zap.Int("remaining", state.Remaining))
	return state, nil
}

// Quota reports the current quota without charging.
func (s *HintService) Quota(ctx context.Context, userID string) (reward.HintState, error) {
	if strings.TrimSpace(userID) == "" {
		return reward.HintState{}, appErr.ValidationError("user_id", "required")
	}
	learner, err := s.learners.Get(ctx, nil, userID)
	if err != nil {
		return reward.HintState{}, s.classify(ctx, userID, err)
	}
	limit := s.policy.HintLimit(learner.Plan)
	used := s.policy.HintsUsedToday(learner, s.now())
	state := reward.HintState{Used: used, Limit: limit, Remaining: reward.Unlimited}
	if limit != reward.Unlimited {
		state.Remaining = max(limit-used, 0)
	}
	return state, nil
}

func (s *HintService) classify(ctx context.Context, userID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrLearnerNotFound):
		return appErr.New(appErr.UserNotFound).WithDetail("user_id", userID)
	case appErr.Is(err, appErr.HintQuotaExceeded):
		return err
	default:
		logger.Error(ctx, "hint quota update failed", zap.String("user_id", userID), zap.Error(err))
		return appErr.Wrapf(err, appErr.DatabaseError, "update hint quota failed")
	}
}
