package sandbox

import (
	"context"
	"time"

	"dailycode/internal/verify/harness"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/sandbox/remote"
	"dailycode/internal/verify/sandbox/result"
	"dailycode/pkg/errors"
	"dailycode/pkg/utils/logger"

	"go.uber.org/zap"
)

// LocalRunner evaluates a request in-process.
type LocalRunner interface {
	Run(ctx context.Context, req model.ExecutionRequest) ([]model.TestResult, error)
}

// RemoteExecutor runs a generated program on the execution service.
type RemoteExecutor interface {
	Execute(ctx context.Context, req remote.Request) ([]result.Entry, error)
}

// Observer receives one callback per dispatched request.
type Observer interface {
	ObserveExecution(language model.Language, backend BackendKind, duration time.Duration, err error)
}

// Executor is the single execution entry point used by the service layer.
type Executor interface {
	Execute(ctx context.Context, req model.ExecutionRequest) ([]model.TestResult, error)
}

// Dispatcher routes each request by language.
type Dispatcher struct {
	registry *Registry
	local    LocalRunner
	remote   RemoteExecutor
	observer Observer
	nonce    func() string
}

// NewDispatcher creates a dispatcher. observer may be nil.
func NewDispatcher(registry *Registry, local LocalRunner, remote RemoteExecutor, observer Observer) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		local:    local,
		remote:   remote,
		observer: observer,
		nonce:    harness.NewNonce,
	}
}

// Execute runs req on its backend and returns one result per test case in
// input order. Unknown languages fail with LanguageNotSupported.
func (d *Dispatcher) Execute(ctx context.Context, req model.ExecutionRequest) ([]model.TestResult, error) {
	req.Language = model.NormalizeLanguage(string(req.Language))
	spec, ok := d.registry.Lookup(req.Language)
	if !ok {
		return nil, errors.ExecutionError(errors.LanguageNotSupported, "language "+string(req.Language)+" is not supported")
	}

	start := time.Now()
	var (
		results []model.TestResult
		err     error
	)
	switch spec.Backend {
	case BackendLocal:
		if d.local == nil {
			err = errors.ExecutionError(errors.LanguageNotSupported, "local backend is disabled")
			break
		}
		results, err = d.local.Run(ctx, req)
	default:
		results, err = d.executeRemote(ctx, spec, req)
	}
	if d.observer != nil {
		d.observer.ObserveExecution(spec.ID, spec.Backend, time.Since(start), err)
	}
	if err != nil {
		logger.Info(ctx, "execution failed",
			zap.String("language", string(spec.ID)),
			zap.String("backend", string(spec.Backend)),
			zap.Error(err),
		)
		return nil, err
	}
	return results, nil
}

func (d *Dispatcher) executeRemote(ctx context.Context, spec LanguageSpec, req model.ExecutionRequest) ([]model.TestResult, error) {
	if d.remote == nil {
		return nil, errors.ExecutionError(errors.LanguageNotSupported, "remote backend is disabled")
	}
	gen, ok := harness.Lookup(spec.ID)
	if !ok {
		return nil, errors.ExecutionError(errors.LanguageNotSupported, "language "+string(spec.ID)+" has no harness")
	}
	nonce := d.nonce()
	prog, err := gen.Generate(harness.Request{
		Code:      req.SourceCode,
		Cases:     req.TestCases,
		Signature: signatureOrDefault(req.Signature),
		Nonce:     nonce,
	})
	if err != nil {
		return nil, err
	}
	if spec.FileName != "" {
		prog.FileName = spec.FileName
	}

	entries, err := d.remote.Execute(ctx, remote.Request{
		Runtime: spec.Runtime,
		Version: spec.Version,
		Program: prog,
		Nonce:   nonce,
		Cases:   len(req.TestCases),
	})
	if err != nil {
		return nil, err
	}
	return result.Reconcile(req.TestCases, entries), nil
}

func signatureOrDefault(sig model.Signature) model.Signature {
	if sig.IsZero() {
		return model.DefaultSignature()
	}
	return sig
}
