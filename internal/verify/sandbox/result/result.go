// Package result locates the harness result block in program output and turns
// it into per-test verdicts.
package result

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"dailycode/internal/verify/harness"
	"dailycode/internal/verify/model"
	"dailycode/pkg/errors"
)

// Entry is one element of the harness result array. Passed is what the
// harness claims; Reconcile recomputes it.
type Entry struct {
	Index  int      `json:"index"`
	Passed bool     `json:"passed"`
	Actual string   `json:"actual"`
	Logs   []string `json:"logs"`
	Error  string   `json:"error"`
}

// Extract finds the block delimited by the markers for nonce and decodes it.
// The block must occur exactly once and carry exactly n entries in order.
func Extract(stdout, nonce string, n int) ([]Entry, error) {
	start := harness.StartMarker(nonce)
	end := harness.EndMarker(nonce)

	switch strings.Count(stdout, start) {
	case 0:
		return nil, malformed("result block start marker not found")
	case 1:
	default:
		return nil, malformed("result block start marker repeated")
	}
	body := stdout[strings.Index(stdout, start)+len(start):]
	stop := strings.Index(body, end)
	if stop < 0 {
		return nil, malformed("result block end marker not found")
	}
	body = strings.TrimSpace(body[:stop])

	var entries []Entry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, malformed(fmt.Sprintf("result block is not valid json: %v", err))
	}
	if len(entries) != n {
		return nil, malformed(fmt.Sprintf("result block has %d entries, expected %d", len(entries), n))
	}
	for i, e := range entries {
		if e.Index != i {
			return nil, malformed(fmt.Sprintf("result entry %d reports index %d", i, e.Index))
		}
	}
	return entries, nil
}

func malformed(diagnostic string) error {
	return errors.ExecutionError(errors.MalformedExecutionOutput, diagnostic)
}

// Reconcile pairs entries with their test cases. A test passes only when the
// call raised nothing and the reported value equals the stored expectation.
func Reconcile(cases []model.TestCase, entries []Entry) []model.TestResult {
	results := make([]model.TestResult, len(cases))
	for i, tc := range cases {
		r := model.TestResult{
			Input:    tc.InputJSON(),
			Expected: tc.ExpectedJSON(),
			Actual:   "Error",
			Logs:     []string{},
		}
		if i < len(entries) {
			e := entries[i]
			r.Actual = e.Actual
			r.Error = e.Error
			if e.Logs != nil {
				r.Logs = e.Logs
			}
			r.Passed = e.Error == "" && Equal(e.Actual, tc.Expected)
		}
		results[i] = r
	}
	return results
}

// FailAll reports every case as failed with the same message, used when a
// batch dies before producing per-test output.
func FailAll(cases []model.TestCase, actual, message string) []model.TestResult {
	results := make([]model.TestResult, len(cases))
	for i, tc := range cases {
		results[i] = model.TestResult{
			Input:    tc.InputJSON(),
			Expected: tc.ExpectedJSON(),
			Actual:   actual,
			Error:    message,
			Logs:     []string{message},
		}
	}
	return results
}

// Equal compares a serialized actual value against the expected JSON by
// structure. Numbers compare as float64, so 1 and 1.0 are equal.
func Equal(actual string, expected json.RawMessage) bool {
	var a, e any
	if err := json.Unmarshal([]byte(actual), &a); err != nil {
		return false
	}
	if err := json.Unmarshal(expected, &e); err != nil {
		return false
	}
	return reflect.DeepEqual(a, e)
}
