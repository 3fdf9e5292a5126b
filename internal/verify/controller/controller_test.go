package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dailycode/internal/verify/middleware"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/reward"
	"dailycode/internal/verify/service"
	appErr "dailycode/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	mu      sync.Mutex
	outcome model.Outcome
	err     error
	last    service.VerifyRequest
	dryRuns int
}

func (f *fakeVerifier) Verify(_ context.Context, req service.VerifyRequest) (model.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	return f.outcome, f.err
}

func (f *fakeVerifier) Run(_ context.Context, req service.VerifyRequest) (model.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	f.dryRuns++
	return f.outcome, f.err
}

type fakeJobs struct {
	status model.SubmissionStatus
}

func (f *fakeJobs) Submit(_ context.Context, req service.VerifyRequest) (model.SubmissionStatus, error) {
	return model.SubmissionStatus{SubmissionID: "sub-1", UserID: req.UserID, Status: model.StatusPending, ReceivedAt: 42}, nil
}

func (f *fakeJobs) Status(_ context.Context, userID, _ string) (model.SubmissionStatus, error) {
	if userID != f.status.UserID {
		return model.SubmissionStatus{}, appErr.New(appErr.SubmissionNotFound)
	}
	return f.status, nil
}

type fakeWatcher struct {
	updates chan model.SubmissionStatus
	stopped chan struct{}
}

func (f *fakeWatcher) Watch(context.Context, string) (<-chan model.SubmissionStatus, func() error, error) {
	return f.updates, func() error {
		close(f.stopped)
		return nil
	}, nil
}

type fakeHints struct {
	err error
}

func (f fakeHints) Consume(context.Context, string) (reward.HintState, error) {
	if f.err != nil {
		return reward.HintState{}, f.err
	}
	return reward.HintState{Used: 1, Limit: 3, Remaining: 2}, nil
}

func (f fakeHints) Quota(context.Context, string) (reward.HintState, error) {
	return reward.HintState{Used: 0, Limit: 3, Remaining: 3}, nil
}

type recordingObserver struct {
	verdicts int
	hints    int
}

func (r *recordingObserver) ObserveVerification(model.Outcome, error) { r.verdicts++ }
func (r *recordingObserver) ObserveHint(error)                        { r.hints++ }

type rejectAll struct{}

func (rejectAll) Authenticate(string) (string, error) {
	return "", appErr.New(appErr.Unauthorized)
}

type envelope struct {
	Code appErr.ErrorCode `json:"code"`
	Data json.RawMessage  `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	verifier *fakeVerifier
	jobs     *fakeJobs
	watcher  *fakeWatcher
	observer *recordingObserver
}

func newTestServer(t *testing.T, hints HintAPI) *testServer {
	t.Helper()
	s := &testServer{
		verifier: &fakeVerifier{outcome: model.Outcome{Passed: true, PassedCount: 2, Total: 2, Reward: &model.Reward{XPGained: 50}}},
		jobs:     &fakeJobs{status: model.SubmissionStatus{SubmissionID: "sub-1", UserID: "u1", Status: model.StatusRunning}},
		watcher:  &fakeWatcher{updates: make(chan model.SubmissionStatus, 1), stopped: make(chan struct{})},
		observer: &recordingObserver{},
	}
	s.router = NewRouter(RouterConfig{
		Verify:            NewVerifyController(s.verifier, s.observer),
		Submissions:       NewSubmissionController(s.jobs, s.watcher),
		Hints:             NewHintController(hints, s.observer),
		Auth:              rejectAll{},
		AllowUserIDHeader: true,
		RateLimit:         middleware.RateLimitPolicy{Window: time.Minute, UserMax: 10},
		Metrics:           http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok_total 1\n")) }),
	})
	return s
}

func (s *testServer) do(method, path, user, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

const sumBody = `{"problemId":"sum","language":"python","code":"def solution(a, b):\n    return a + b\n"}`

func TestVerifyRoute(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, fakeHints{})

	w, env := s.do(http.MethodPost, "/api/v1/verify", "u1", sumBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var out model.Outcome
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !out.Passed || out.Reward == nil || out.Reward.XPGained != 50 {
		t.Fatalf("outcome = %+v", out)
	}
	if s.verifier.last.UserID != "u1" || s.verifier.last.ProblemID != "sum" || s.verifier.last.Language != "python" {
		t.Fatalf("request = %+v", s.verifier.last)
	}
	if s.observer.verdicts != 1 {
		t.Fatalf("verdict not observed")
	}
}

func TestVerifyRouteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		user   string
		body   string
		err    error
		status int
	}{
		{name: "no identity", body: sumBody, status: http.StatusUnauthorized},
		{name: "bad payload", user: "u1", body: `{"problemId":""}`, status: http.StatusBadRequest},
		{name: "unknown problem", user: "u1", body: sumBody, err: appErr.New(appErr.ProblemNotFound), status: http.StatusNotFound},
		{name: "compile error", user: "u1", body: sumBody, err: appErr.ExecutionError(appErr.CompilationError, "boom"), status: http.StatusUnprocessableEntity},
		{name: "commit failure", user: "u1", body: sumBody, err: appErr.New(appErr.RewardCommitFailed), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, fakeHints{})
			s.verifier.err = tt.err
			w, _ := s.do(http.MethodPost, "/api/v1/verify", tt.user, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestRunRoute(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, fakeHints{})
	w, _ := s.do(http.MethodPost, "/api/v1/run", "u1", sumBody)
	if w.Code != http.StatusOK || s.verifier.dryRuns != 1 {
		t.Fatalf("status = %d dryRuns = %d", w.Code, s.verifier.dryRuns)
	}
	if s.observer.verdicts != 0 {
		t.Fatalf("dry runs are not verdicts")
	}
}

func TestAsyncSubmitAndStatus(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, fakeHints{})

	w, env := s.do(http.MethodPost, "/api/v1/verify/async", "u1", sumBody)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d", w.Code)
	}
	var submitted SubmitResponse
	if err := json.Unmarshal(env.Data, &submitted); err != nil || submitted.SubmissionID != "sub-1" || submitted.Status != model.StatusPending {
		t.Fatalf("submit response = %+v err=%v", submitted, err)
	}

	w, _ = s.do(http.MethodGet, "/api/v1/verify/submissions/sub-1", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner status = %d", w.Code)
	}
	w, _ = s.do(http.MethodGet, "/api/v1/verify/submissions/sub-1", "u2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign status = %d", w.Code)
	}
}

func TestHintRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, fakeHints{})
	w, env := s.do(http.MethodPost, "/api/v1/hints/consume", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("consume status = %d", w.Code)
	}
	var state reward.HintState
	if err := json.Unmarshal(env.Data, &state); err != nil || state.Remaining != 2 {
		t.Fatalf("state = %+v err=%v", state, err)
	}
	if w, _ := s.do(http.MethodGet, "/api/v1/hints/quota", "u1", ""); w.Code != http.StatusOK {
		t.Fatalf("quota status = %d", w.Code)
	}

	exhausted := newTestServer(t, fakeHints{err: appErr.New(appErr.HintQuotaExceeded)})
	if w, _ := exhausted.do(http.MethodPost, "/api/v1/hints/consume", "u1", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted status = %d", w.Code)
	}
	if exhausted.observer.hints != 1 {
		t.Fatalf("hint attempt not observed")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, fakeHints{})
	if w, _ := s.do(http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w, _ := s.do(http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok_total") {
		t.Fatalf("metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestStatusStreamUntilFinal(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, fakeHints{})
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/verify/submissions/sub-1/stream"
	header := http.Header{}
	header.Set("X-User-Id", "u1")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first model.SubmissionStatus
	if err := conn.ReadJSON(&first); err != nil || first.Status != model.StatusRunning {
		t.Fatalf("first frame = %+v err=%v", first, err)
	}
	s.watcher.updates <- model.SubmissionStatus{SubmissionID: "sub-1", UserID: "u1", Status: model.StatusFinished}
	var second model.SubmissionStatus
	if err := conn.ReadJSON(&second); err != nil || second.Status != model.StatusFinished {
		t.Fatalf("second frame = %+v err=%v", second, err)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
	select {
	case <-s.watcher.stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("watch was not stopped")
	}
}
