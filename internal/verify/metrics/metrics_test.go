package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dailycode/internal/verify/model"
	"dailycode/internal/verify/sandbox"
	appErr "dailycode/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExecution(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveExecution(model.LanguagePython, sandbox.BackendRemote, 120*time.Millisecond, nil)
	m.ObserveExecution(model.LanguagePython, sandbox.BackendRemote, time.Second, appErr.New(appErr.ExecutionTimeout))

	if got := testutil.ToFloat64(m.executions.WithLabelValues("python", "remote", "ok")); got != 1 {
		t.Fatalf("ok executions = %v", got)
	}
	timeout := codeLabel(appErr.New(appErr.ExecutionTimeout))
	if got := testutil.ToFloat64(m.executions.WithLabelValues("python", "remote", timeout)); got != 1 {
		t.Fatalf("timeout executions = %v", got)
	}
}

func TestObserveVerification(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveVerification(model.Outcome{Passed: true, Reward: &model.Reward{XPGained: 50}}, nil)
	m.ObserveVerification(model.Outcome{Passed: true, AlreadyCompleted: true}, nil)
	m.ObserveVerification(model.Outcome{Passed: false}, nil)
	m.ObserveVerification(model.Outcome{}, appErr.New(appErr.ProblemNotFound))

	for label, want := range map[string]float64{"passed": 1, "already_completed": 1, "failed": 1, "error": 1} {
		if got := testutil.ToFloat64(m.verifications.WithLabelValues(label)); got != want {
			t.Errorf("%s = %v, want %v", label, got, want)
		}
	}
	if got := testutil.ToFloat64(m.xpGranted); got != 50 {
		t.Fatalf("xp granted = %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveHint(nil)
	m.ObserveHint(appErr.New(appErr.HintQuotaExceeded))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`dailycode_hint_requests_total{result="granted"} 1`,
		`dailycode_hint_requests_total{result="quota_exceeded"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveExecution(model.LanguageJavaScript, sandbox.BackendLocal, time.Millisecond, nil)
	m.ObserveVerification(model.Outcome{}, nil)
	m.ObserveHint(nil)
}
