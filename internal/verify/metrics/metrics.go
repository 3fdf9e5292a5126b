// Package metrics exposes verification and execution counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"dailycode/internal/verify/model"
	"dailycode/internal/verify/sandbox"
	appErr "dailycode/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dailycode"

// Metrics owns its registry so several instances can coexist in one process.
type Metrics struct {
	registry          *prometheus.Registry
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	verifications     *prometheus.CounterVec
	xpGranted         prometheus.Counter
	hints             *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Dispatched executions by language, backend and result code.",
		}, []string{"language", "backend", "code"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Wall time of one dispatched execution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"language", "backend"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "verifications_total",
			Help:      "Verification verdicts by result.",
		}, []string{"result"}),
		xpGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "xp_granted_total",
			Help:      "Experience points granted by first completions.",
		}),
		hints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hint",
			Name:      "requests_total",
			Help:      "Hint consumption attempts by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.executions,
		m.executionDuration,
		m.verifications,
		m.xpGranted,
		m.hints,
	)
	return m
}

var _ sandbox.Observer = (*Metrics)(nil)

// ObserveExecution implements sandbox.Observer.
func (m *Metrics) ObserveExecution(language model.Language, backend sandbox.BackendKind, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(string(language), string(backend), codeLabel(err)).Inc()
	m.executionDuration.WithLabelValues(string(language), string(backend)).Observe(duration.Seconds())
}

// ObserveVerification records one Verify call.
func (m *Metrics) ObserveVerification(outcome model.Outcome, err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(verdictLabel(outcome, err)).Inc()
	if err == nil && outcome.Reward != nil {
		m.xpGranted.Add(float64(outcome.Reward.XPGained))
	}
}

// ObserveHint records one hint consumption attempt.
func (m *Metrics) ObserveHint(err error) {
	if m == nil {
		return
	}
	result := "granted"
	switch {
	case err == nil:
	case appErr.Is(err, appErr.HintQuotaExceeded):
		result = "quota_exceeded"
	default:
		result = "error"
	}
	m.hints.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func codeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strconv.Itoa(int(appErr.GetCode(err)))
}

func verdictLabel(outcome model.Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case !outcome.Passed:
		return "failed"
	case outcome.AlreadyCompleted:
		return "already_completed"
	default:
		return "passed"
	}
}
