package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Language identifies a submission language, e.g. "python" or "cpp".
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageRust       Language = "rust"
)

// NormalizeLanguage lowercases and maps common aliases.
func NormalizeLanguage(raw string) Language {
	switch lang := strings.ToLower(strings.TrimSpace(raw)); lang {
	case "js", "node":
		return LanguageJavaScript
	case "py", "python3":
		return LanguagePython
	case "c++", "cxx":
		return LanguageCPP
	case "rs":
		return LanguageRust
	default:
		return Language(lang)
	}
}

// TestCase is one stored input/expected pair. Input holds the positional
// arguments; a scalar input in storage is treated as a single argument.
type TestCase struct {
	Input    []json.RawMessage `json:"input"`
	Expected json.RawMessage   `json:"expected"`
}

// UnmarshalJSON accepts both `"input": [a, b]` and `"input": a`.
func (t *TestCase) UnmarshalJSON(data []byte) error {
	var raw struct {
		Input    json.RawMessage `json:"input"`
		Expected json.RawMessage `json:"expected"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Input) == 0 {
		return fmt.Errorf("test case input is missing")
	}
	if len(raw.Expected) == 0 {
		return fmt.Errorf("test case expected is missing")
	}
	input := bytes.TrimSpace(raw.Input)
	if len(input) > 0 && input[0] == '[' {
		if err := json.Unmarshal(input, &t.Input); err != nil {
			return err
		}
	} else {
		t.Input = []json.RawMessage{input}
	}
	if t.Input == nil {
		t.Input = []json.RawMessage{}
	}
	t.Expected = raw.Expected
	return nil
}

// InputJSON renders the argument list as compact JSON, e.g. `[[2,7,11],9]`.
func (t TestCase) InputJSON() string {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, arg := range t.Input {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(CompactJSON(arg))
	}
	b.WriteByte(']')
	return b.String()
}

// ExpectedJSON renders the expected value as compact JSON.
func (t TestCase) ExpectedJSON() string {
	return CompactJSON(t.Expected)
}

// CompactJSON strips insignificant whitespace, falling back to the raw text.
func CompactJSON(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}

// ParseTestCases decodes a problem's stored payload. Empty payloads decode to
// an empty list.
func ParseTestCases(payload string) ([]TestCase, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		payload = "[]"
	}
	var cases []TestCase
	if err := json.Unmarshal([]byte(payload), &cases); err != nil {
		return nil, err
	}
	if cases == nil {
		cases = []TestCase{}
	}
	return cases, nil
}

// TestResult is the normalized outcome of one test case.
type TestResult struct {
	Passed   bool     `json:"passed"`
	Input    string   `json:"input"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
}

// AllPassed is the verdict over a result list. An empty list never passes.
func AllPassed(results []TestResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// PassedCount counts passing results.
func PassedCount(results []TestResult) int {
	n := 0
	for _, r := range results {
		if r.Passed {
			n++
		}
	}
	return n
}

// ExecutionRequest is built per call and never cached.
type ExecutionRequest struct {
	Language   Language
	SourceCode string
	TestCases  []TestCase
	// Signature is only consulted by statically typed harnesses.
	Signature Signature
}
