package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dailycode/internal/common/db"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/repository"
	"dailycode/internal/verify/reward"
	"dailycode/internal/verify/sandbox"
	"dailycode/internal/verify/sandbox/local"
	appErr "dailycode/pkg/errors"
)

type fakeExecutor struct {
	mu        sync.Mutex
	results   []model.TestResult
	err       error
	calls     int
	last      model.ExecutionRequest
	onExecute func()
}

func (f *fakeExecutor) Execute(_ context.Context, req model.ExecutionRequest) ([]model.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.onExecute != nil {
		f.onExecute()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.CompletionEvent
	err    error
}

func (f *fakeEvents) PublishCompletion(_ context.Context, event model.CompletionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type fakeAudit struct {
	mu      sync.Mutex
	records []model.AuditRecord
	ctxErrs []error
}

func (f *fakeAudit) Write(ctx context.Context, record model.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return nil
}

type failingProgress struct {
	repository.ProgressRepository
	err error
}

func (f failingProgress) Save(context.Context, db.Transaction, model.DailyProgress) error {
	return f.err
}

// staleCompletions never sees an existing row, like a request that checked
// before a concurrent commit landed.
type staleCompletions struct {
	repository.CompletionRepository
}

func (staleCompletions) Exists(context.Context, db.Transaction, string, string) (bool, error) {
	return false, nil
}

type fixture struct {
	svc         *Service
	exec        *fakeExecutor
	events      *fakeEvents
	audit       *fakeAudit
	manager     *db.Manager
	learners    *repository.SQLLearnerRepository
	problems    *repository.SQLProblemRepository
	completions *repository.SQLCompletionRepository
	now         time.Time
}

const sumCases = `[{"input":[1,2],"expected":3},{"input":[2,2],"expected":4}]`

func passing(n int) []model.TestResult {
	out := make([]model.TestResult, n)
	for i := range out {
		out[i] = model.TestResult{Passed: true, Logs: []string{}}
	}
	return out
}

func newFixture(t *testing.T, executor sandbox.Executor) *fixture {
	t.Helper()
	ctx := context.Background()
	database, err := db.NewSQLite(db.PoolConfig{DSN: "file:" + t.Name() + "?mode=memory"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := repository.Migrate(ctx, database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	manager := db.NewManager(database)

	f := &fixture{
		exec:        &fakeExecutor{results: passing(2)},
		events:      &fakeEvents{},
		audit:       &fakeAudit{},
		manager:     manager,
		learners:    repository.NewLearnerRepository(manager),
		problems:    repository.NewProblemRepository(manager, nil),
		completions: repository.NewCompletionRepository(manager),
		now:         time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if executor == nil {
		executor = f.exec
	}
	svc, err := NewService(Config{
		DB:          manager,
		Problems:    f.problems,
		Learners:    f.learners,
		Completions: f.completions,
		Progress:    repository.NewProgressRepository(manager),
		Executor:    executor,
		Policy:      reward.DefaultPolicy(),
		Events:      f.events,
		Audit:       f.audit,
		Now:         func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc

	if err := f.learners.Create(ctx, nil, model.Learner{ID: "u1"}); err != nil {
		t.Fatalf("seed learner: %v", err)
	}
	for _, p := range []model.Problem{
		{ID: "sum", Title: "Sum", TestCases: sumCases},
		{ID: "sum-again", Title: "Sum again", TestCases: sumCases},
		{ID: "broken", Title: "Broken", TestCases: `{"input":`},
		{ID: "empty", Title: "Empty", TestCases: `[]`},
		{ID: "bad-signature", Title: "Bad signature", TestCases: sumCases, Signature: `{"method":"1x","params":[],"returns":"int"}`},
	} {
		if err := f.problems.Save(ctx, p); err != nil {
			t.Fatalf("seed problem: %v", err)
		}
	}
	return f
}

func submit(problemID string) VerifyRequest {
	return VerifyRequest{UserID: "u1", ProblemID: problemID, Language: "python", SourceCode: "def solution(a, b):\n    return a + b\n"}
}

func TestVerifyGrantsRewardOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.svc.Verify(ctx, submit("sum"))
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if !first.Passed || first.AlreadyCompleted || first.Reward == nil || first.Reward.XPGained != 50 {
		t.Fatalf("first outcome = %+v", first)
	}
	if first.PassedCount != 2 || first.Total != 2 {
		t.Fatalf("counts = %d/%d", first.PassedCount, first.Total)
	}

	second, err := f.svc.Verify(ctx, submit("sum"))
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if !second.Passed || !second.AlreadyCompleted || second.Reward != nil {
		t.Fatalf("second outcome = %+v", second)
	}

	learner, err := f.learners.Get(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("load learner: %v", err)
	}
	if learner.XP != 50 {
		t.Fatalf("XP = %d, reward must be granted once", learner.XP)
	}
	if len(f.events.events) != 1 || f.events.events[0].Reward.XPGained != 50 {
		t.Fatalf("completion events = %+v", f.events.events)
	}
	if len(f.audit.records) != 2 || !f.audit.records[0].Passed || f.audit.records[0].SubmissionID == "" {
		t.Fatalf("audit records = %+v", f.audit.records)
	}
	if f.audit.records[0].Reward == nil || f.audit.records[0].AlreadyCompleted {
		t.Fatalf("first audit record = %+v", f.audit.records[0])
	}
	if !f.audit.records[1].AlreadyCompleted || f.audit.records[1].Reward != nil {
		t.Fatalf("repeat audit record = %+v", f.audit.records[1])
	}
	if f.exec.last.Language != model.LanguagePython || len(f.exec.last.TestCases) != 2 {
		t.Fatalf("execution request = %+v", f.exec.last)
	}
}

func TestVerifyDailyTargetGrantsStreakBonus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	if _, err := f.svc.Verify(ctx, submit("sum")); err != nil {
		t.Fatalf("Verify sum: %v", err)
	}
	out, err := f.svc.Verify(ctx, submit("sum-again"))
	if err != nil {
		t.Fatalf("Verify sum-again: %v", err)
	}
	if out.Reward == nil || !out.Reward.StreakBonus || out.Reward.XPGained != 75 || out.Reward.Streak != 1 {
		t.Fatalf("reward = %+v", out.Reward)
	}
	learner, _ := f.learners.Get(ctx, nil, "u1")
	if learner.XP != 125 || learner.Streak != 1 || learner.LastStudiedAt == nil {
		t.Fatalf("learner = %+v", learner)
	}
}

func TestVerifyFailingTestsCommitNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.exec.results = []model.TestResult{
		{Passed: true, Logs: []string{}},
		{Passed: false, Actual: "5", Logs: []string{"boom"}},
	}

	out, err := f.svc.Verify(ctx, submit("sum"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if out.Passed || out.Reward != nil || out.PassedCount != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if done, _ := f.completions.Exists(ctx, nil, "u1", "sum"); done {
		t.Fatalf("failing verdict must not record a completion")
	}
	if len(f.events.events) != 0 {
		t.Fatalf("no completion event expected")
	}
	if len(f.audit.records) != 1 || f.audit.records[0].Passed {
		t.Fatalf("failed verdict should still be audited: %+v", f.audit.records)
	}
}

func TestVerifyErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     VerifyRequest
		execErr error
		results []model.TestResult
		want    appErr.ErrorCode
	}{
		{name: "unknown learner", req: VerifyRequest{UserID: "ghost", ProblemID: "sum", Language: "python", SourceCode: "x"}, want: appErr.UserNotFound},
		{name: "unknown problem", req: submit("nope"), want: appErr.ProblemNotFound},
		{name: "malformed test cases", req: submit("broken"), want: appErr.ProblemConfigInvalid},
		{name: "no test cases", req: submit("empty"), want: appErr.ProblemConfigInvalid},
		{name: "bad signature", req: submit("bad-signature"), want: appErr.SignatureInvalid},
		{name: "missing language", req: VerifyRequest{UserID: "u1", ProblemID: "sum", SourceCode: "x"}, want: appErr.ValidationFailed},
		{name: "compile error kept", req: submit("sum"), execErr: appErr.ExecutionError(appErr.CompilationError, "main.cpp:1: error"), want: appErr.CompilationError},
		{name: "bare error classified", req: submit("sum"), execErr: errors.New("connection reset"), want: appErr.ExecutionFailed},
		{name: "deadline classified", req: submit("sum"), execErr: context.DeadlineExceeded, want: appErr.ExecutionTimeout},
		{name: "short result list", req: submit("sum"), results: passing(1), want: appErr.MalformedExecutionOutput},
	}
	for _, tt := range tests {
		f := newFixture(t, nil)
		f.exec.err = tt.execErr
		if tt.results != nil {
			f.exec.results = tt.results
		}
		_, err := f.svc.Verify(context.Background(), tt.req)
		if !appErr.Is(err, tt.want) {
			t.Errorf("%s: err = %v (code %d), want code %d", tt.name, err, appErr.GetCode(err), tt.want)
		}
	}
}

func TestVerifyCommitFailureLeavesNoPartialState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.svc.progress = failingProgress{ProgressRepository: f.svc.progress, err: errors.New("disk full")}

	_, err := f.svc.Verify(ctx, submit("sum"))
	if !appErr.Is(err, appErr.RewardCommitFailed) {
		t.Fatalf("err = %v (code %d)", err, appErr.GetCode(err))
	}
	if done, _ := f.completions.Exists(ctx, nil, "u1", "sum"); done {
		t.Fatalf("completion row must be rolled back")
	}
	learner, err := f.learners.Get(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("load learner: %v", err)
	}
	if learner.XP != 0 || learner.Streak != 0 {
		t.Fatalf("learner = %+v, nothing should be granted", learner)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("no completion event expected, got %+v", f.events.events)
	}
}

func TestVerifyConcurrentDuplicateGrantsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)
	f.svc.completions = staleCompletions{CompletionRepository: f.completions}

	first, err := f.svc.Verify(ctx, submit("sum"))
	if err != nil || first.Reward == nil {
		t.Fatalf("first Verify: outcome=%+v err=%v", first, err)
	}
	second, err := f.svc.Verify(ctx, submit("sum"))
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if !second.Passed || !second.AlreadyCompleted || second.Reward != nil {
		t.Fatalf("second outcome = %+v", second)
	}
	learner, _ := f.learners.Get(ctx, nil, "u1")
	if learner.XP != 50 {
		t.Fatalf("XP = %d, want 50", learner.XP)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("completion events = %d, want 1", len(f.events.events))
	}
}

func TestVerifyAuditSurvivesCancelledRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.results = []model.TestResult{{Passed: true, Logs: []string{}}, {Passed: false, Actual: "5", Logs: []string{}}}
	f.exec.onExecute = cancel

	out, err := f.svc.Verify(ctx, submit("sum"))
	if err != nil || out.Passed {
		t.Fatalf("Verify: outcome=%+v err=%v", out, err)
	}
	if len(f.audit.records) != 1 || f.audit.ctxErrs[0] != nil {
		t.Fatalf("audit must be written on a detached context: records=%d errs=%v", len(f.audit.records), f.audit.ctxErrs)
	}
}

func TestVerifyRejectsOversizedSource(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.svc.maxSourceBytes = 8

	_, err := f.svc.Verify(context.Background(), submit("sum"))
	if !appErr.Is(err, appErr.CodeTooLarge) {
		t.Fatalf("err = %v", err)
	}
	if f.exec.calls != 0 {
		t.Fatalf("oversized source must not be executed")
	}
}

func TestRunNeverCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil)

	out, err := f.svc.Run(ctx, VerifyRequest{ProblemID: "sum", Language: "python", SourceCode: "x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Passed || out.Reward != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if done, _ := f.completions.Exists(ctx, nil, "u1", "sum"); done {
		t.Fatalf("dry run must not record a completion")
	}
	if len(f.audit.records) != 0 {
		t.Fatalf("dry run must not be audited")
	}
}

func TestVerifyJavaScriptEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dispatcher := sandbox.NewDispatcher(sandbox.DefaultRegistry(), local.NewRunner(local.Config{}), nil, nil)
	f := newFixture(t, dispatcher)

	wrong := VerifyRequest{UserID: "u1", ProblemID: "sum", Language: "javascript", SourceCode: "function solution(a, b) { return a - b; }"}
	out, err := f.svc.Verify(ctx, wrong)
	if err != nil {
		t.Fatalf("Verify wrong: %v", err)
	}
	if out.Passed || out.Results[0].Actual != "-1" {
		t.Fatalf("wrong outcome = %+v", out)
	}

	right := VerifyRequest{UserID: "u1", ProblemID: "sum", Language: "js", SourceCode: "function solution(a, b) { return a + b; }"}
	out, err = f.svc.Verify(ctx, right)
	if err != nil {
		t.Fatalf("Verify right: %v", err)
	}
	if !out.Passed || out.Results[0].Actual != "3" || out.Reward == nil {
		t.Fatalf("right outcome = %+v", out)
	}
}
