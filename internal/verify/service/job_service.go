package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dailycode/internal/common/cache"
	"dailycode/internal/common/mq"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/repository"
	appErr "dailycode/pkg/errors"
	"dailycode/pkg/utils/contextkey"
	"dailycode/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const jobLockPrefix = "verify:job:lock:"

// Verifier is the orchestrator as seen by the async worker.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (model.Outcome, error)
}

// StatusStore persists async submission status.
type StatusStore interface {
	Get(ctx context.Context, submissionID string) (model.SubmissionStatus, error)
	Save(ctx context.Context, status model.SubmissionStatus) error
}

// JobService accepts async submissions and works them off the queue.
type JobService struct {
	verifier          Verifier
	statusRepo        StatusStore
	jobs              repository.JobPublisher
	statusEvents      repository.StatusEventPublisher
	locker            cache.LockOps
	queue             mq.Producer
	retryTopic        string
	deadLetter        string
	poolRetryMax      int
	poolRetryBase     time.Duration
	poolRetryMaxDelay time.Duration
	workerTimeout     time.Duration
	statusTimeout     time.Duration
	lockTTL           time.Duration
	owner             string
	sem               chan struct{}
}

// JobConfig holds JobService dependencies and settings.
type JobConfig struct {
	Verifier          Verifier
	StatusRepo        StatusStore
	Jobs              repository.JobPublisher
	StatusEvents      repository.StatusEventPublisher
	Locker            cache.LockOps
	Queue             mq.Producer
	RetryTopic        string
	DeadLetterTopic   string
	PoolRetryMax      int
	PoolRetryBase     time.Duration
	PoolRetryMaxDelay time.Duration
	WorkerPoolSize    int
	WorkerTimeout     time.Duration
	StatusTimeout     time.Duration
	LockTTL           time.Duration
}

func NewJobService(cfg JobConfig) (*JobService, error) {
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if cfg.StatusRepo == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job publisher is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &JobService{
		verifier:          cfg.Verifier,
		statusRepo:        cfg.StatusRepo,
		jobs:              cfg.Jobs,
		statusEvents:      cfg.StatusEvents,
		locker:            cfg.Locker,
		queue:             cfg.Queue,
		retryTopic:        cfg.RetryTopic,
		deadLetter:        cfg.DeadLetterTopic,
		poolRetryMax:      cfg.PoolRetryMax,
		poolRetryBase:     cfg.PoolRetryBase,
		poolRetryMaxDelay: cfg.PoolRetryMaxDelay,
		workerTimeout:     cfg.WorkerTimeout,
		statusTimeout:     cfg.StatusTimeout,
		lockTTL:           lockTTL,
		owner:             uuid.NewString(),
		sem:               make(chan struct{}, poolSize),
	}, nil
}

// Submit records a pending status and enqueues the job.
func (s *JobService) Submit(ctx context.Context, req VerifyRequest) (model.SubmissionStatus, error) {
	if req.UserID == "" || req.ProblemID == "" || req.Language == "" || req.SourceCode == "" {
		return model.SubmissionStatus{}, appErr.New(appErr.InvalidParams).WithMessage("user, problem, language and source are required")
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}
	now := time.Now().Unix()
	pending := model.SubmissionStatus{
		SubmissionID: req.SubmissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Language:     req.Language,
		Status:       model.StatusPending,
		ReceivedAt:   now,
	}
	if err := s.saveStatus(ctx, pending); err != nil {
		return model.SubmissionStatus{}, err
	}
	job := model.VerifyJob{
		SubmissionID: req.SubmissionID,
		UserID:       req.UserID,
		ProblemID:    req.ProblemID,
		Language:     req.Language,
		SourceCode:   req.SourceCode,
		EnqueuedAt:   now,
	}
	if err := s.jobs.PublishJob(ctx, job); err != nil {
		_ = s.fail(ctx, pending, err)
		return model.SubmissionStatus{}, err
	}
	return pending, nil
}

// Status returns the submission status, hiding other learners' submissions.
func (s *JobService) Status(ctx context.Context, userID, submissionID string) (model.SubmissionStatus, error) {
	status, err := s.statusRepo.Get(ctx, submissionID)
	if err != nil {
		return model.SubmissionStatus{}, err
	}
	if userID != "" && status.UserID != userID {
		return model.SubmissionStatus{}, appErr.New(appErr.SubmissionNotFound)
	}
	return status, nil
}

// HandleMessage processes one verification job. A returned error asks the
// queue to redeliver.
func (s *JobService) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var job model.VerifyJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		logger.Warn(ctx, "drop undecodable verify job", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if job.SubmissionID == "" || job.UserID == "" || job.ProblemID == "" {
		logger.Warn(ctx, "drop verify job missing fields", zap.String("message_id", msg.ID))
		return nil
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, job.SubmissionID)
	ctx = context.WithValue(ctx, contextkey.UserID, job.UserID)

	if !s.tryAcquireSlot() {
		return s.requeueForPoolFull(ctx, msg)
	}
	defer s.releaseSlot()

	if s.locker != nil {
		key := jobLockPrefix + job.SubmissionID
		ok, err := s.locker.TryLock(ctx, key, s.owner, s.lockTTL)
		if err != nil {
			return appErr.Wrapf(err, appErr.LockFailed, "lock verify job failed")
		}
		if !ok {
			logger.Info(ctx, "verify job already in progress elsewhere")
			return nil
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), key, s.owner); err != nil {
				logger.Warn(ctx, "unlock verify job failed", zap.Error(err))
			}
		}()
	}

	running := model.SubmissionStatus{
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		ProblemID:    job.ProblemID,
		Language:     job.Language,
		Status:       model.StatusRunning,
		ReceivedAt:   job.EnqueuedAt,
	}
	if current, err := s.statusRepo.Get(ctx, job.SubmissionID); err == nil && current.Final() {
		logger.Info(ctx, "verify job already finished")
		return nil
	}
	if err := s.saveStatus(ctx, running); err != nil {
		return err
	}

	workCtx := ctx
	if s.workerTimeout > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, s.workerTimeout)
		defer cancel()
	}
	outcome, err := s.verifier.Verify(workCtx, VerifyRequest{
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		ProblemID:    job.ProblemID,
		Language:     job.Language,
		SourceCode:   job.SourceCode,
	})
	if err != nil {
		return s.handleFailure(ctx, running, err)
	}

	finished := running
	finished.Status = model.StatusFinished
	finished.Outcome = &outcome
	finished.FinishedAt = time.Now().Unix()
	if err := s.saveStatus(ctx, finished); err != nil {
		return err
	}
	s.publishFinal(ctx, finished)
	return nil
}

// handleFailure records a failed status. Learner, configuration and execution
// errors are final; commit and infrastructure errors are redelivered.
func (s *JobService) handleFailure(ctx context.Context, status model.SubmissionStatus, err error) error {
	code := appErr.GetCode(err)
	retryable := code == appErr.CompletionCommitFailed ||
		code == appErr.RewardCommitFailed ||
		code == appErr.DatabaseError ||
		code == appErr.InternalServerError
	if retryable {
		logger.Warn(ctx, "verify job failed, will be redelivered", zap.Error(err))
		return err
	}
	return s.fail(ctx, status, err)
}

func (s *JobService) fail(ctx context.Context, status model.SubmissionStatus, err error) error {
	failed := status
	failed.Status = model.StatusFailed
	failed.ErrorCode = int(appErr.GetCode(err))
	failed.ErrorMessage = errorMessage(err)
	failed.FinishedAt = time.Now().Unix()
	if saveErr := s.saveStatus(ctx, failed); saveErr != nil {
		logger.Warn(ctx, "update failure status failed", zap.Error(saveErr))
		return saveErr
	}
	s.publishFinal(ctx, failed)
	return nil
}

func (s *JobService) publishFinal(ctx context.Context, status model.SubmissionStatus) {
	if s.statusEvents == nil {
		return
	}
	if err := s.statusEvents.PublishFinalStatus(ctx, status); err != nil {
		logger.Warn(ctx, "publish final status failed", zap.Error(err))
	}
}

func (s *JobService) saveStatus(ctx context.Context, status model.SubmissionStatus) error {
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statusRepo.Save(ctxStatus, status)
}

// errorMessage is the learner-facing text, with the execution diagnostic
// appended when there is one.
func errorMessage(err error) string {
	e := appErr.GetError(err)
	if diagnostic, ok := e.Details["diagnostic"].(string); ok && diagnostic != "" {
		return e.Message + ": " + diagnostic
	}
	return e.Message
}
