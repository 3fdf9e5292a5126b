package result

import (
	"encoding/json"
	"strings"
	"testing"

	"dailycode/internal/verify/harness"
	"dailycode/internal/verify/model"
	"dailycode/pkg/errors"
)

func block(nonce, body string) string {
	return "\n" + harness.StartMarker(nonce) + "\n" + body + "\n" + harness.EndMarker(nonce) + "\n"
}

func TestExtract(t *testing.T) {
	t.Parallel()

	nonce := "abc123"
	good := `[{"index":0,"passed":true,"actual":"[0,1]","logs":["hi"],"error":""},{"index":1,"passed":false,"actual":"Error","logs":[],"error":"boom"}]`

	tests := []struct {
		name    string
		stdout  string
		n       int
		wantErr bool
	}{
		{name: "ok", stdout: "noise\n" + block(nonce, good), n: 2},
		{name: "no markers", stdout: good, n: 2, wantErr: true},
		{name: "missing end", stdout: harness.StartMarker(nonce) + good, n: 2, wantErr: true},
		{name: "forged block without nonce", stdout: "---JSON_START---\n" + good + "\n---JSON_END---", n: 2, wantErr: true},
		{name: "other nonce", stdout: block("zzz", good), n: 2, wantErr: true},
		{name: "duplicated block", stdout: block(nonce, good) + block(nonce, good), n: 2, wantErr: true},
		{name: "truncated json", stdout: block(nonce, good[:40]), n: 2, wantErr: true},
		{name: "wrong count", stdout: block(nonce, good), n: 3, wantErr: true},
		{name: "out of order", stdout: block(nonce, `[{"index":1},{"index":0}]`), n: 2, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, err := Extract(tt.stdout, nonce, tt.n)
			if tt.wantErr {
				if !errors.Is(err, errors.MalformedExecutionOutput) {
					t.Fatalf("err = %v, want MalformedExecutionOutput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if len(entries) != tt.n || entries[0].Actual != "[0,1]" || entries[1].Error != "boom" {
				t.Fatalf("unexpected entries: %+v", entries)
			}
		})
	}
}

func TestReconcileRecomputesPassed(t *testing.T) {
	t.Parallel()

	cases, err := model.ParseTestCases(`[
		{"input": [[2, 7], 9], "expected": [0, 1]},
		{"input": [[1], 1], "expected": [0]},
		{"input": [[1], 1], "expected": 2.0},
		{"input": [[1], 1], "expected": "x"}
	]`)
	if err != nil {
		t.Fatalf("ParseTestCases() error = %v", err)
	}
	entries := []Entry{
		{Index: 0, Passed: true, Actual: "[0, 1]"},
		{Index: 1, Passed: true, Actual: "[5]"},
		{Index: 2, Passed: false, Actual: "2"},
		{Index: 3, Passed: false, Actual: "Error", Error: "TypeError: nope", Logs: []string{"TypeError: nope"}},
	}
	results := Reconcile(cases, entries)
	want := []bool{true, false, true, false}
	for i, r := range results {
		if r.Passed != want[i] {
			t.Errorf("result %d passed = %v, want %v", i, r.Passed, want[i])
		}
	}
	if results[0].Input != `[[2,7],9]` || results[0].Expected != `[0,1]` {
		t.Fatalf("input/expected not taken from stored cases: %+v", results[0])
	}
	if results[1].Logs == nil {
		t.Fatalf("logs must never be nil")
	}
	if results[3].Error == "" {
		t.Fatalf("error should be carried over")
	}
}

func TestFailAll(t *testing.T) {
	t.Parallel()

	cases := []model.TestCase{
		{Input: []json.RawMessage{json.RawMessage(`1`)}, Expected: json.RawMessage(`1`)},
		{Input: []json.RawMessage{json.RawMessage(`2`)}, Expected: json.RawMessage(`2`)},
	}
	results := FailAll(cases, "Syntax/Runtime Error", "SyntaxError: Unexpected token")
	if len(results) != 2 || model.AllPassed(results) {
		t.Fatalf("unexpected results: %+v", results)
	}
	for _, r := range results {
		if r.Actual != "Syntax/Runtime Error" || !strings.Contains(r.Logs[0], "SyntaxError") {
			t.Fatalf("unexpected result: %+v", r)
		}
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		actual   string
		expected string
		want     bool
	}{
		{`[0,1]`, `[0, 1]`, true},
		{`[1,0]`, `[0,1]`, false},
		{`1.0`, `1`, true},
		{`"abc"`, `"abc"`, true},
		{`{"b":1,"a":2}`, `{"a":2,"b":1}`, true},
		{`undefined`, `null`, false},
		{`null`, `null`, true},
		{`[[1],[2]]`, `[[1],[2]]`, true},
		{`true`, `1`, false},
		{`NaN`, `null`, false},
		{`[1,Infinity]`, `[1,null]`, false},
	}
	for _, tt := range tests {
		if got := Equal(tt.actual, json.RawMessage(tt.expected)); got != tt.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", tt.actual, tt.expected, got, tt.want)
		}
	}
}
