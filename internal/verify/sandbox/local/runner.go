// Package local runs JavaScript submissions in-process on goja.
//
// A goja runtime is not a security boundary: learner code shares the host
// process and its memory is not capped. The local backend is meant for
// trusted learners; untrusted traffic should route javascript to the remote
// backend instead.
package local

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"dailycode/internal/verify/model"
	"dailycode/internal/verify/sandbox/result"
	"dailycode/pkg/errors"
	"dailycode/pkg/utils/logger"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const (
	// FatalActual is reported for every test when the program never ran.
	FatalActual = "Syntax/Runtime Error"
	entryPoint  = "solution"
	timeoutText = "timeout"

	nonFiniteMark = "__dc_nonfinite__:"
)

// nonFinite turns the quoted marks left by the stringify replacer back into
// bare NaN and Infinity tokens, the form every remote harness prints. They
// are not JSON, so they never equal an expected value.
var nonFinite = strings.NewReplacer(
	`"`+nonFiniteMark+`NaN"`, "NaN",
	`"`+nonFiniteMark+`Infinity"`, "Infinity",
	`"`+nonFiniteMark+`-Infinity"`, "-Infinity",
)

// Config bounds one local execution.
type Config struct {
	TestTimeout      time.Duration
	LoadTimeout      time.Duration
	MaxCallStackSize int
}

func (c *Config) applyDefaults() {
	if c.TestTimeout <= 0 {
		c.TestTimeout = 2 * time.Second
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 2 * time.Second
	}
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = 10000
	}
}

// Runner evaluates learner code against test cases.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	cfg.applyDefaults()
	return &Runner{cfg: cfg}
}

// session is one fresh runtime plus the log sink of the running test.
type session struct {
	vm        *goja.Runtime
	stringify goja.Callable
	replacer  goja.Value
	parse     goja.Callable
	logs      []string
}

// Run evaluates req.SourceCode once and calls `solution` for each test case in
// order. A load failure fails every test; a throw or timeout fails only the
// test that caused it. The error return is reserved for cancellation.
func (r *Runner) Run(ctx context.Context, req model.ExecutionRequest) ([]model.TestResult, error) {
	s, err := newSession(r.cfg.MaxCallStackSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ExecutionFailed)
	}

	// Cancellation interrupts whatever is running.
	stop := context.AfterFunc(ctx, func() { s.vm.Interrupt(ctx.Err()) })
	defer stop()

	fn, loadErr := s.load(req.SourceCode, r.cfg.LoadTimeout)
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	if loadErr != "" {
		logger.Debug(ctx, "local program failed to load", zap.String("error", loadErr))
		return result.FailAll(req.TestCases, FatalActual, loadErr), nil
	}

	entries := make([]result.Entry, len(req.TestCases))
	for i, tc := range req.TestCases {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		entries[i] = s.call(fn, i, tc, r.cfg.TestTimeout)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	return result.Reconcile(req.TestCases, entries), nil
}

func cancelled(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.ExecutionError(errors.ExecutionTimeout, "execution deadline exceeded")
	}
	return errors.Wrap(ctx.Err(), errors.ExecutionFailed)
}

func newSession(maxStack int) (*session, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxStack)
	json := vm.Get("JSON").ToObject(vm)
	stringify, ok := goja.AssertFunction(json.Get("stringify"))
	if !ok {
		return nil, fmt.Errorf("JSON.stringify unavailable")
	}
	parse, ok := goja.AssertFunction(json.Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse unavailable")
	}
	s := &session{vm: vm, stringify: stringify, parse: parse}
	s.replacer = vm.ToValue(s.replaceNonFinite)

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, s.captureLog); err != nil {
			return nil, err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) captureLog(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = s.show(arg)
	}
	s.logs = append(s.logs, strings.Join(parts, " "))
	return goja.Undefined()
}

// show renders a console argument: strings verbatim, everything else as JSON
// when it has a JSON form.
func (s *session) show(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if str, ok := v.Export().(string); ok {
		return str
	}
	out, err := s.stringify(goja.Undefined(), v)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return v.String()
	}
	return out.String()
}

// withTimeout runs fn, interrupting the runtime after d.
func (s *session) withTimeout(d time.Duration, fn func() error) error {
	fired := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		s.vm.Interrupt(timeoutText)
		close(fired)
	})
	err := fn()
	if !timer.Stop() {
		<-fired
	}
	s.vm.ClearInterrupt()
	return err
}

// load evaluates the program and resolves the entry point. A non-empty
// message means the batch cannot run.
func (s *session) load(code string, timeout time.Duration) (goja.Callable, string) {
	var fn goja.Callable
	err := s.withTimeout(timeout, func() error {
		if _, err := s.vm.RunString(code); err != nil {
			return err
		}
		v, err := s.vm.RunString("typeof " + entryPoint + " === 'function' ? " + entryPoint + " : undefined")
		if err != nil {
			return err
		}
		f, ok := goja.AssertFunction(v)
		if !ok {
			return fmt.Errorf("ReferenceError: %s is not defined as a function", entryPoint)
		}
		fn = f
		return nil
	})
	if err != nil {
		return nil, errorText(err)
	}
	return fn, ""
}

func (s *session) call(fn goja.Callable, index int, tc model.TestCase, timeout time.Duration) result.Entry {
	s.logs = nil
	entry := result.Entry{Index: index, Actual: "Error"}

	args := make([]goja.Value, len(tc.Input))
	for i, raw := range tc.Input {
		v, err := s.parse(goja.Undefined(), s.vm.ToValue(string(raw)))
		if err != nil {
			entry.Error = "invalid test input: " + errorText(err)
			entry.Logs = []string{entry.Error}
			return entry
		}
		args[i] = v
	}

	var value goja.Value
	err := s.withTimeout(timeout, func() error {
		var callErr error
		value, callErr = fn(goja.Undefined(), args...)
		return callErr
	})
	entry.Logs = append([]string{}, s.logs...)
	if err != nil {
		entry.Error = errorText(err)
		entry.Logs = append(entry.Logs, entry.Error)
		return entry
	}

	entry.Actual = s.serialize(value)
	return entry
}

// serialize mirrors JSON.stringify, reporting "undefined" when there is no
// JSON form. NaN and the infinities keep their names instead of becoming null.
func (s *session) serialize(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	out, err := s.stringify(goja.Undefined(), v, s.replacer)
	if err != nil {
		return "Error"
	}
	if out == nil || goja.IsUndefined(out) {
		return "undefined"
	}
	return nonFinite.Replace(out.String())
}

func (s *session) replaceNonFinite(call goja.FunctionCall) goja.Value {
	v := call.Argument(1)
	f, ok := v.Export().(float64)
	if !ok {
		return v
	}
	switch {
	case math.IsNaN(f):
		return s.vm.ToValue(nonFiniteMark + "NaN")
	case math.IsInf(f, 1):
		return s.vm.ToValue(nonFiniteMark + "Infinity")
	case math.IsInf(f, -1):
		return s.vm.ToValue(nonFiniteMark + "-Infinity")
	}
	return v
}

func errorText(err error) string {
	var interrupted *goja.InterruptedError
	var exception *goja.Exception
	switch {
	case stderrors.As(err, &interrupted):
		if v, ok := interrupted.Value().(string); ok {
			return v
		}
		return timeoutText
	case stderrors.As(err, &exception):
		if exception.Value() != nil {
			return exception.Value().String()
		}
		return exception.Error()
	default:
		return err.Error()
	}
}
