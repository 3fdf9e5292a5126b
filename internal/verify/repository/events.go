package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dailycode/internal/common/mq"
	"dailycode/internal/verify/model"
	appErr "dailycode/pkg/errors"
)

// StatusEventPublisher publishes final submission states.
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, status model.SubmissionStatus) error
}

// CompletionEventPublisher announces first-time completions to downstream consumers.
type CompletionEventPublisher interface {
	PublishCompletion(ctx context.Context, event model.CompletionEvent) error
}

// JobPublisher enqueues async verification jobs.
type JobPublisher interface {
	PublishJob(ctx context.Context, job model.VerifyJob) error
}

// MQPublisher implements every publisher over one message queue, one topic each.
type MQPublisher struct {
	queue           mq.MessageQueue
	jobTopic        string
	statusTopic     string
	completionTopic string
}

func NewMQPublisher(queue mq.MessageQueue, jobTopic, statusTopic, completionTopic string) *MQPublisher {
	return &MQPublisher{
		queue:           queue,
		jobTopic:        jobTopic,
		statusTopic:     statusTopic,
		completionTopic: completionTopic,
	}
}

// PublishJob publishes a job keyed by its submission id.
func (p *MQPublisher) PublishJob(ctx context.Context, job model.VerifyJob) error {
	if job.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	return p.publish(ctx, p.jobTopic, job.SubmissionID, job)
}

// PublishFinalStatus publishes a final status event.
func (p *MQPublisher) PublishFinalStatus(ctx context.Context, status model.SubmissionStatus) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	event := model.StatusEvent{
		Type:      model.StatusEventFinal,
		Status:    status,
		CreatedAt: time.Now().Unix(),
	}
	return p.publish(ctx, p.statusTopic, status.SubmissionID, event)
}

func (p *MQPublisher) PublishCompletion(ctx context.Context, event model.CompletionEvent) error {
	if event.UserID == "" || event.ProblemID == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("completion event missing user or problem")
	}
	return p.publish(ctx, p.completionTopic, event.UserID+":"+event.ProblemID, event)
}

func (p *MQPublisher) publish(ctx context.Context, topic, id string, payload any) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("event publisher is not configured")
	}
	if topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("topic is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	if err := p.queue.Publish(ctx, topic, mq.NewMessage(id, body)); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish to %s failed", topic)
	}
	return nil
}
