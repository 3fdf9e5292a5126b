package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dailycode/internal/common/db"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/repository"
	"dailycode/internal/verify/reward"
	"dailycode/internal/verify/sandbox"
	appErr "dailycode/pkg/errors"
	"dailycode/pkg/utils/contextkey"
	"dailycode/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxSourceBytes    = 64 * 1024
	defaultSideEffectTimeout = 5 * time.Second
)

// VerifyRequest is one submission from a learner.
type VerifyRequest struct {
	SubmissionID string
	UserID       string
	ProblemID    string
	Language     string
	SourceCode   string
}

// Service is the single path from a submission to a committed reward.
type Service struct {
	dbProvider        db.Provider
	problems          repository.ProblemRepository
	learners          repository.LearnerRepository
	completions       repository.CompletionRepository
	progress          repository.ProgressRepository
	executor          sandbox.Executor
	policy            reward.Policy
	events            repository.CompletionEventPublisher
	audit             repository.AuditWriter
	executeTimeout    time.Duration
	sideEffectTimeout time.Duration
	maxSourceBytes    int
	now               func() time.Time
}

// Config holds service dependencies and settings. Events and Audit are optional.
type Config struct {
	DB                db.Provider
	Problems          repository.ProblemRepository
	Learners          repository.LearnerRepository
	Completions       repository.CompletionRepository
	Progress          repository.ProgressRepository
	Executor          sandbox.Executor
	Policy            reward.Policy
	Events            repository.CompletionEventPublisher
	Audit             repository.AuditWriter
	ExecuteTimeout    time.Duration
	SideEffectTimeout time.Duration
	MaxSourceBytes    int
	Now               func() time.Time
}

// NewService creates a verification service.
func NewService(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database provider is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Learners == nil {
		return nil, fmt.Errorf("learner repository is required")
	}
	if cfg.Completions == nil {
		return nil, fmt.Errorf("completion repository is required")
	}
	if cfg.Progress == nil {
		return nil, fmt.Errorf("progress repository is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = defaultMaxSourceBytes
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = defaultSideEffectTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		dbProvider:        cfg.DB,
		problems:          cfg.Problems,
		learners:          cfg.Learners,
		completions:       cfg.Completions,
		progress:          cfg.Progress,
		executor:          cfg.Executor,
		policy:            cfg.Policy,
		events:            cfg.Events,
		audit:             cfg.Audit,
		executeTimeout:    cfg.ExecuteTimeout,
		sideEffectTimeout: cfg.SideEffectTimeout,
		maxSourceBytes:    cfg.MaxSourceBytes,
		now:               cfg.Now,
	}, nil
}

// Verify executes the submission and, on a first full pass, records the
// completion and grants the reward in one transaction. Failing tests are a
// normal outcome, not an error.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (model.Outcome, error) {
	if err := s.validate(req, true); err != nil {
		return model.Outcome{}, err
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, req.SubmissionID)

	if _, err := s.learners.Get(ctx, nil, req.UserID); err != nil {
		if errors.Is(err, repository.ErrLearnerNotFound) {
			return model.Outcome{}, appErr.New(appErr.UserNotFound).WithDetail("user_id", req.UserID)
		}
		return model.Outcome{}, appErr.Wrapf(err, appErr.DatabaseError, "load learner failed")
	}

	outcome, err := s.evaluate(ctx, req)
	if err != nil {
		return model.Outcome{}, err
	}
	if !outcome.Passed {
		s.afterVerdict(ctx, req, outcome)
		return outcome, nil
	}

	done, err := s.completions.Exists(ctx, nil, req.UserID, req.ProblemID)
	if err != nil {
		return model.Outcome{}, appErr.Wrapf(err, appErr.CompletionCommitFailed, "check completion failed")
	}
	if done {
		outcome.AlreadyCompleted = true
		logger.Info(ctx, "problem already completed, reward skipped",
			zap.String("user_id", req.UserID), zap.String("problem_id", req.ProblemID))
		s.afterVerdict(ctx, req, outcome)
		return outcome, nil
	}

	granted, already, err := s.commit(ctx, req)
	if err != nil {
		logger.Error(ctx, "commit completion failed",
			zap.String("user_id", req.UserID), zap.String("problem_id", req.ProblemID), zap.Error(err))
		return model.Outcome{}, err
	}
	if already {
		outcome.AlreadyCompleted = true
		s.afterVerdict(ctx, req, outcome)
		return outcome, nil
	}
	outcome.Reward = &granted
	s.afterVerdict(ctx, req, outcome)
	return outcome, nil
}

// Run is a dry run: execute and evaluate only.
func (s *Service) Run(ctx context.Context, req VerifyRequest) (model.Outcome, error) {
	if err := s.validate(req, false); err != nil {
		return model.Outcome{}, err
	}
	return s.evaluate(ctx, req)
}

func (s *Service) validate(req VerifyRequest, needUser bool) error {
	if needUser && strings.TrimSpace(req.UserID) == "" {
		return appErr.ValidationError("user_id", "required")
	}
	if strings.TrimSpace(req.ProblemID) == "" {
		return appErr.ValidationError("problem_id", "required")
	}
	if strings.TrimSpace(req.Language) == "" {
		return appErr.ValidationError("language", "required")
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		return appErr.ValidationError("source_code", "required")
	}
	if len(req.SourceCode) > s.maxSourceBytes {
		return appErr.New(appErr.CodeTooLarge).WithDetail("max_bytes", s.maxSourceBytes)
	}
	return nil
}

// evaluate covers load, parse, execute and the verdict.
func (s *Service) evaluate(ctx context.Context, req VerifyRequest) (model.Outcome, error) {
	problem, err := s.problems.Get(ctx, req.ProblemID)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return model.Outcome{}, appErr.New(appErr.ProblemNotFound).WithDetail("problem_id", req.ProblemID)
		}
		return model.Outcome{}, appErr.Wrapf(err, appErr.DatabaseError, "load problem failed")
	}

	cases, err := model.ParseTestCases(problem.TestCases)
	if err != nil {
		logger.Error(ctx, "stored test cases are malformed", zap.String("problem_id", problem.ID), zap.Error(err))
		return model.Outcome{}, appErr.Wrapf(err, appErr.ProblemConfigInvalid, "decode test cases failed")
	}
	if len(cases) == 0 {
		logger.Error(ctx, "problem has no test cases", zap.String("problem_id", problem.ID))
		return model.Outcome{}, appErr.New(appErr.ProblemConfigInvalid).WithMessage("problem has no test cases")
	}
	var signature model.Signature
	if strings.TrimSpace(problem.Signature) != "" {
		signature, err = model.ParseSignature(problem.Signature)
		if err != nil {
			logger.Error(ctx, "stored signature is malformed", zap.String("problem_id", problem.ID), zap.Error(err))
			return model.Outcome{}, appErr.Wrapf(err, appErr.SignatureInvalid, "decode signature failed")
		}
	}

	execCtx := ctx
	if s.executeTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.executeTimeout)
		defer cancel()
	}
	start := time.Now()
	results, err := s.executor.Execute(execCtx, model.ExecutionRequest{
		Language:   model.NormalizeLanguage(req.Language),
		SourceCode: req.SourceCode,
		TestCases:  cases,
		Signature:  signature,
	})
	if err != nil {
		err = classifyExecutionError(err)
		logger.Warn(ctx, "execution error",
			zap.String("problem_id", problem.ID),
			zap.String("language", req.Language),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return model.Outcome{}, err
	}
	if len(results) != len(cases) {
		return model.Outcome{}, appErr.ExecutionError(appErr.MalformedExecutionOutput,
			fmt.Sprintf("expected %d results, got %d", len(cases), len(results)))
	}

	outcome := model.NewOutcome(results)
	logger.Info(ctx, "verification evaluated",
		zap.String("problem_id", problem.ID),
		zap.String("language", req.Language),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("passed", outcome.Passed),
		zap.Int("passed_count", outcome.PassedCount),
		zap.Int("total", outcome.Total),
	)
	return outcome, nil
}

// classifyExecutionError keeps coded errors and maps bare ones into the
// execution range so they are never mistaken for failing tests.
func classifyExecutionError(err error) error {
	if appErr.GetCode(err) != appErr.InternalServerError {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErr.Wrapf(err, appErr.ExecutionTimeout, "execution timed out")
	}
	return appErr.Wrapf(err, appErr.ExecutionFailed, "execution failed")
}

var errCompletedConcurrently = errors.New("completed concurrently")

// commit writes completion, daily progress and learner state atomically. It
// reports already=true when a concurrent commit won the unique key.
func (s *Service) commit(ctx context.Context, req VerifyRequest) (granted model.Reward, already bool, err error) {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return model.Reward{}, false, appErr.Wrapf(err, appErr.CompletionCommitFailed, "database unavailable")
	}
	now := s.now()
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		learner, err := s.learners.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return appErr.Wrapf(err, appErr.RewardCommitFailed, "lock learner failed")
		}
		if err := s.completions.Insert(ctx, tx, model.Completion{
			UserID:      req.UserID,
			ProblemID:   req.ProblemID,
			Language:    string(model.NormalizeLanguage(req.Language)),
			CompletedAt: now,
		}); err != nil {
			if errors.Is(err, repository.ErrAlreadyCompleted) {
				return errCompletedConcurrently
			}
			return appErr.Wrapf(err, appErr.CompletionCommitFailed, "record completion failed")
		}
		progress, err := s.progress.Get(ctx, tx, req.UserID, s.policy.Day(now))
		if err != nil {
			return appErr.Wrapf(err, appErr.RewardCommitFailed, "load daily progress failed")
		}
		out := s.policy.ApplyCompletion(learner, progress, now)
		if err := s.progress.Save(ctx, tx, out.Progress); err != nil {
			return appErr.Wrapf(err, appErr.RewardCommitFailed, "save daily progress failed")
		}
		if err := s.learners.UpdateProgress(ctx, tx, out.Learner); err != nil {
			return appErr.Wrapf(err, appErr.RewardCommitFailed, "update learner failed")
		}
		granted = out.Reward
		return nil
	})
	if errors.Is(err, errCompletedConcurrently) {
		logger.Info(ctx, "concurrent completion detected, reward skipped",
			zap.String("user_id", req.UserID), zap.String("problem_id", req.ProblemID))
		return model.Reward{}, true, nil
	}
	if err != nil {
		if appErr.GetCode(err) == appErr.InternalServerError {
			err = appErr.Wrapf(err, appErr.CompletionCommitFailed, "commit transaction failed")
		}
		return model.Reward{}, false, err
	}
	logger.Info(ctx, "completion committed",
		zap.String("user_id", req.UserID),
		zap.String("problem_id", req.ProblemID),
		zap.Int64("xp_gained", granted.XPGained),
		zap.Bool("streak_bonus", granted.StreakBonus),
		zap.Int("streak", granted.Streak),
	)
	return granted, false, nil
}

// afterVerdict runs best-effort side effects for a recorded verdict: the
// completion event when a reward was granted, and the audit record. Failures
// are logged and never undo the commit.
func (s *Service) afterVerdict(ctx context.Context, req VerifyRequest, outcome model.Outcome) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	if s.events != nil && outcome.Reward != nil {
		event := model.CompletionEvent{
			SubmissionID: req.SubmissionID,
			UserID:       req.UserID,
			ProblemID:    req.ProblemID,
			Language:     string(model.NormalizeLanguage(req.Language)),
			Reward:       *outcome.Reward,
			CompletedAt:  s.now().Unix(),
		}
		if err := s.events.PublishCompletion(sideCtx, event); err != nil {
			logger.Warn(ctx, "publish completion event failed", zap.Error(err))
		}
	}
	s.writeAudit(sideCtx, req, outcome)
}

func (s *Service) writeAudit(ctx context.Context, req VerifyRequest, outcome model.Outcome) {
	if s.audit == nil {
		return
	}
	record := model.AuditRecord{
		SubmissionID:     req.SubmissionID,
		UserID:           req.UserID,
		ProblemID:        req.ProblemID,
		Language:         string(model.NormalizeLanguage(req.Language)),
		SourceCode:       req.SourceCode,
		Passed:           outcome.Passed,
		AlreadyCompleted: outcome.AlreadyCompleted,
		Results:          outcome.Results,
		Reward:           outcome.Reward,
		CreatedAt:        s.now().Unix(),
	}
	if err := s.audit.Write(ctx, record); err != nil {
		logger.Warn(ctx, "write audit record failed", zap.Error(err))
	}
}
