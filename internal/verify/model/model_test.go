package model

import (
	"testing"
)

func TestParseTestCases(t *testing.T) {
	t.Parallel()

	cases, err := ParseTestCases(`[
		{"input": [[2, 7, 11, 15], 9], "expected": [0, 1]},
		{"input": "abc", "expected": "cba"}
	]`)
	if err != nil {
		t.Fatalf("ParseTestCases() error = %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("len = %d, want 2", len(cases))
	}
	if got := cases[0].InputJSON(); got != `[[2,7,11,15],9]` {
		t.Fatalf("InputJSON() = %s", got)
	}
	if got := cases[0].ExpectedJSON(); got != `[0,1]` {
		t.Fatalf("ExpectedJSON() = %s", got)
	}
	if len(cases[1].Input) != 1 || cases[1].InputJSON() != `["abc"]` {
		t.Fatalf("scalar input should become one argument, got %s", cases[1].InputJSON())
	}
}

func TestParseTestCasesEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantLen int
		wantErr bool
	}{
		{name: "empty", payload: "", wantLen: 0},
		{name: "empty array", payload: "[]", wantLen: 0},
		{name: "no args", payload: `[{"input": [], "expected": 1}]`, wantLen: 1},
		{name: "not json", payload: "{oops", wantErr: true},
		{name: "missing expected", payload: `[{"input": [1]}]`, wantErr: true},
		{name: "object root", payload: `{"input": [1], "expected": 1}`, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTestCases(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestAllPassed(t *testing.T) {
	t.Parallel()

	if AllPassed(nil) {
		t.Fatalf("empty result list must not pass")
	}
	results := []TestResult{{Passed: true}, {Passed: false}}
	if AllPassed(results) {
		t.Fatalf("one failure must fail the verdict")
	}
	if PassedCount(results) != 1 {
		t.Fatalf("PassedCount = %d", PassedCount(results))
	}
	if !AllPassed(results[:1]) {
		t.Fatalf("all passing results should pass")
	}
}

func TestParseSignature(t *testing.T) {
	t.Parallel()

	sig, err := ParseSignature("")
	if err != nil {
		t.Fatalf("default signature: %v", err)
	}
	if sig.Method != "twoSum" || sig.SnakeMethod() != "two_sum" {
		t.Fatalf("unexpected default: %+v", sig)
	}

	sig, err = ParseSignature(`{"method":"maxSubArray","params":["int[]"],"returns":"int"}`)
	if err != nil {
		t.Fatalf("ParseSignature() error = %v", err)
	}
	if sig.SnakeMethod() != "max_sub_array" {
		t.Fatalf("SnakeMethod() = %s", sig.SnakeMethod())
	}

	bad := []string{
		`{"method":"f","params":["map"],"returns":"int"}`,
		`{"method":"f; drop","params":[],"returns":"int"}`,
		`{"method":"f","params":[],"returns":"int[][][]"}`,
		`not json`,
	}
	for _, payload := range bad {
		if _, err := ParseSignature(payload); err == nil {
			t.Errorf("ParseSignature(%q) should fail", payload)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]Language{
		"JavaScript": LanguageJavaScript,
		"py":         LanguagePython,
		"c++":        LanguageCPP,
		" rust ":     LanguageRust,
		"go":         Language("go"),
	}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
