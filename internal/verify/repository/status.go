package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dailycode/internal/common/cache"
	"dailycode/internal/verify/model"
	appErr "dailycode/pkg/errors"
)

const (
	statusKeyPrefix     = "verify:status:"
	statusChannelPrefix = "verify:status:events:"
)

// StatusRepository keeps async submission status in Redis and announces every
// save on a per-submission channel.
type StatusRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns status by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.SubmissionStatus, error) {
	if submissionID == "" {
		return model.SubmissionStatus{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.SubmissionStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil {
		return model.SubmissionStatus{}, appErr.Wrapf(err, appErr.CacheError, "load status failed")
	}
	if val == "" {
		return model.SubmissionStatus{}, appErr.New(appErr.SubmissionNotFound).WithMessage(ErrSubmissionMissing.Error())
	}
	var status model.SubmissionStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.SubmissionStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return status, nil
}

// Save persists status and notifies stream subscribers.
func (r *StatusRepository) Save(ctx context.Context, status model.SubmissionStatus) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+status.SubmissionID, string(data), r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	if err := r.cache.Publish(ctx, statusChannelPrefix+status.SubmissionID, string(data)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "publish status failed")
	}
	return nil
}

// Watch streams status updates for one submission until ctx ends or stop is
// called. Malformed messages are skipped.
func (r *StatusRepository) Watch(ctx context.Context, submissionID string) (<-chan model.SubmissionStatus, func() error, error) {
	if submissionID == "" {
		return nil, nil, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return nil, nil, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	raw, stop, err := r.cache.Subscribe(ctx, statusChannelPrefix+submissionID)
	if err != nil {
		return nil, nil, appErr.Wrapf(err, appErr.CacheError, "subscribe status failed")
	}
	out := make(chan model.SubmissionStatus)
	go func() {
		defer close(out)
		for msg := range raw {
			var status model.SubmissionStatus
			if err := json.Unmarshal([]byte(msg), &status); err != nil {
				continue
			}
			select {
			case out <- status:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stop, nil
}
