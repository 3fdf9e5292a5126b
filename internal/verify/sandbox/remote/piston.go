// Package remote runs generated harness programs on a Piston-compatible
// execution service.
//
// The nonce and the expected values are part of the generated source file.
// Learner code that reads its own file at runtime can print a well-formed
// block with the right actual values and exit, so remote verdicts are only
// as trustworthy as the learner. Keeping expectations out of the program
// would need a second output channel the service does not offer.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dailycode/internal/verify/harness"
	"dailycode/internal/verify/sandbox/result"
	"dailycode/pkg/errors"
	"dailycode/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/breaker"
	"go.uber.org/zap"
)

const (
	defaultBaseURL        = "https://emkc.org/api/v2/piston"
	defaultTimeout        = 30 * time.Second
	defaultMaxOutputBytes = 4 << 20
	maxDiagnosticBytes    = 4096
)

// Config controls the execution service client.
type Config struct {
	BaseURL string
	// Timeout bounds the whole request including compile and run.
	Timeout          time.Duration
	RunTimeoutMs     int
	CompileTimeoutMs int
	MaxOutputBytes   int64
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = defaultMaxOutputBytes
	}
}

// Request is one program execution.
type Request struct {
	Runtime string
	Version string
	Program harness.Program
	Nonce   string
	// Cases is the number of result entries the program must print.
	Cases int
}

type file struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language       string `json:"language"`
	Version        string `json:"version"`
	Files          []file `json:"files"`
	RunTimeout     int    `json:"run_timeout,omitempty"`
	CompileTimeout int    `json:"compile_timeout,omitempty"`
}

type stage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type executeResponse struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      stage  `json:"run"`
	Compile  *stage `json:"compile,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Client submits programs to the execution service. It never retries.
type Client struct {
	cfg  Config
	http *http.Client
	brk  breaker.Breaker
}

// NewClient creates a client. A nil httpClient uses a default client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
		brk:  breaker.NewBreaker(breaker.WithName("verify-remote-execution")),
	}
}

// Execute runs the program once and returns the decoded result entries.
// Compile failures, stderr output, transport failures and malformed output
// are all execution-level errors.
func (c *Client) Execute(ctx context.Context, req Request) ([]result.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var resp executeResponse
	err := c.brk.DoWithAcceptable(func() error {
		var postErr error
		resp, postErr = c.post(ctx, req)
		return postErr
	}, acceptable)
	if err != nil {
		if err == breaker.ErrServiceUnavailable {
			return nil, errors.ExecutionError(errors.ExecutionServiceUnavailable, "execution service is temporarily unavailable")
		}
		return nil, err
	}

	if resp.Compile != nil && resp.Compile.Code != nil && *resp.Compile.Code != 0 {
		return nil, errors.ExecutionError(errors.CompilationError, truncate(firstNonEmpty(resp.Compile.Stderr, resp.Compile.Output)))
	}
	if strings.TrimSpace(resp.Run.Stderr) != "" {
		return nil, errors.ExecutionError(errors.RuntimeError, truncate(resp.Run.Stderr)).
			WithDetails(exitDetails(resp.Run))
	}

	entries, err := result.Extract(resp.Run.Stdout, req.Nonce, req.Cases)
	if err != nil {
		logger.Warn(ctx, "execution output missing result block",
			zap.String("runtime", req.Runtime),
			zap.Int("exit_code", exitCode(resp.Run)),
			zap.String("signal", signal(resp.Run)),
			zap.Int("stdout_bytes", len(resp.Run.Stdout)),
		)
		if e := errors.GetError(err); e != nil {
			e.WithDetails(exitDetails(resp.Run))
		}
		return nil, err
	}
	return entries, nil
}

func (c *Client) post(ctx context.Context, req Request) (executeResponse, error) {
	var out executeResponse
	payload, err := json.Marshal(executeRequest{
		Language:       req.Runtime,
		Version:        req.Version,
		Files:          []file{{Name: req.Program.FileName, Content: req.Program.Source}},
		RunTimeout:     c.cfg.RunTimeoutMs,
		CompileTimeout: c.cfg.CompileTimeoutMs,
	})
	if err != nil {
		return out, errors.Wrap(err, errors.ExecutionFailed)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return out, errors.Wrap(err, errors.ExecutionFailed)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return out, withCause(errors.ExecutionError(errors.ExecutionTimeout, "execution timed out"), err)
		}
		return out, withCause(errors.ExecutionError(errors.ExecutionServiceUnavailable, "execution service unreachable"), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxOutputBytes))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return out, withCause(errors.ExecutionError(errors.ExecutionTimeout, "execution timed out"), err)
		}
		return out, withCause(errors.ExecutionError(errors.ExecutionServiceUnavailable, "read execution response failed"), err)
	}
	logger.Debug(ctx, "execution service responded",
		zap.String("runtime", req.Runtime),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = json.Unmarshal(body, &out)
		msg := firstNonEmpty(out.Message, strings.TrimSpace(string(body)))
		code := errors.ExecutionFailed
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = errors.ExecutionServiceUnavailable
		}
		return out, errors.ExecutionError(code, truncate(fmt.Sprintf("execution service returned %d: %s", resp.StatusCode, msg)))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, errors.ExecutionError(errors.MalformedExecutionOutput, "execution service response is not valid json")
	}
	return out, nil
}

// acceptable keeps learner-caused failures from tripping the breaker.
func acceptable(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, errors.ExecutionServiceUnavailable) && !errors.Is(err, errors.ExecutionTimeout)
}

func withCause(e *errors.Error, cause error) *errors.Error {
	e.Err = cause
	return e
}

func exitDetails(s stage) map[string]interface{} {
	return map[string]interface{}{"exit_code": exitCode(s), "signal": signal(s)}
}

func exitCode(s stage) int {
	if s.Code == nil {
		return -1
	}
	return *s.Code
}

func signal(s stage) string {
	if s.Signal == nil {
		return ""
	}
	return *s.Signal
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxDiagnosticBytes {
		return s
	}
	return s[:maxDiagnosticBytes] + "...(truncated)"
}
