package model

// Submission lifecycle states for async verification.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Outcome is the orchestrator's answer for one submission.
type Outcome struct {
	Passed           bool         `json:"passed"`
	PassedCount      int          `json:"passedCount"`
	Total            int          `json:"total"`
	Results          []TestResult `json:"results"`
	AlreadyCompleted bool         `json:"alreadyCompleted"`
	Reward           *Reward      `json:"reward,omitempty"`
}

// NewOutcome summarizes results without any reward attached.
func NewOutcome(results []TestResult) Outcome {
	return Outcome{
		Passed:      AllPassed(results),
		PassedCount: PassedCount(results),
		Total:       len(results),
		Results:     results,
	}
}

// SubmissionStatus is the cached state of an async submission.
type SubmissionStatus struct {
	SubmissionID string   `json:"submissionId"`
	UserID       string   `json:"userId"`
	ProblemID    string   `json:"problemId"`
	Language     string   `json:"language"`
	Status       string   `json:"status"`
	Outcome      *Outcome `json:"outcome,omitempty"`
	ErrorCode    int      `json:"errorCode,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	ReceivedAt   int64    `json:"receivedAt"`
	FinishedAt   int64    `json:"finishedAt,omitempty"`
}

// Final reports whether no further updates will follow.
func (s SubmissionStatus) Final() bool {
	return s.Status == StatusFinished || s.Status == StatusFailed
}

// VerifyJob is the Kafka payload for an async verification.
type VerifyJob struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	ProblemID    string `json:"problem_id"`
	Language     string `json:"language"`
	SourceCode   string `json:"source_code"`
	EnqueuedAt   int64  `json:"enqueued_at"`
}

const StatusEventFinal = "final"

// StatusEvent is published once a submission reaches a final state.
type StatusEvent struct {
	Type      string           `json:"type"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt int64            `json:"created_at"`
}

// CompletionEvent is published after a first-time completion commits.
type CompletionEvent struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	ProblemID    string `json:"problem_id"`
	Language     string `json:"language"`
	Reward       Reward `json:"reward"`
	CompletedAt  int64  `json:"completed_at"`
}

// AuditRecord is the archived trail of one verification.
type AuditRecord struct {
	SubmissionID     string       `json:"submission_id"`
	UserID           string       `json:"user_id"`
	ProblemID        string       `json:"problem_id"`
	Language         string       `json:"language"`
	SourceCode       string       `json:"source_code"`
	Passed           bool         `json:"passed"`
	AlreadyCompleted bool         `json:"already_completed,omitempty"`
	Results          []TestResult `json:"results"`
	Reward           *Reward      `json:"reward,omitempty"`
	CreatedAt        int64        `json:"created_at"`
}
