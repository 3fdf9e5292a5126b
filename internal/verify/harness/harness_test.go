package harness

import (
	"encoding/json"
	"strings"
	"testing"

	"dailycode/internal/verify/model"
	"dailycode/pkg/errors"
)

func twoSumCases(t *testing.T) []model.TestCase {
	t.Helper()
	cases, err := model.ParseTestCases(`[
		{"input": [[2, 7, 11, 15], 9], "expected": [0, 1]},
		{"input": [[3, 2, 4], 6], "expected": [1, 2]}
	]`)
	if err != nil {
		t.Fatalf("ParseTestCases() error = %v", err)
	}
	return cases
}

func TestGenerateAllLanguages(t *testing.T) {
	t.Parallel()

	nonce := NewNonce()
	for _, lang := range Languages() {
		lang := lang
		t.Run(string(lang), func(t *testing.T) {
			t.Parallel()
			gen, ok := Lookup(lang)
			if !ok {
				t.Fatalf("no generator for %s", lang)
			}
			prog, err := gen.Generate(Request{
				Code:      "// learner code",
				Cases:     twoSumCases(t),
				Signature: model.DefaultSignature(),
				Nonce:     nonce,
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if prog.FileName != gen.FileName() {
				t.Fatalf("FileName = %s, want %s", prog.FileName, gen.FileName())
			}
			if !strings.Contains(prog.Source, "// learner code") {
				t.Fatalf("learner code missing from program")
			}
			if strings.Count(prog.Source, StartMarker(nonce)) != 1 || strings.Count(prog.Source, EndMarker(nonce)) != 1 {
				t.Fatalf("markers should appear exactly once:\n%s", prog.Source)
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	got := Languages()
	want := []model.Language{
		model.LanguageCPP, model.LanguageJava, model.LanguageJavaScript, model.LanguagePython, model.LanguageRust,
	}
	if len(got) != len(want) {
		t.Fatalf("Languages() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Languages()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if _, ok := Lookup(model.Language("go")); ok {
		t.Fatalf("go should not have a generator")
	}
}

func TestNewNonce(t *testing.T) {
	t.Parallel()

	a, b := NewNonce(), NewNonce()
	if len(a) != 32 || a == b {
		t.Fatalf("nonces %q %q", a, b)
	}
	if StartMarker(a) != "---JSON_START:"+a+"---" || EndMarker(a) != "---JSON_END:"+a+"---" {
		t.Fatalf("unexpected markers")
	}
}

func TestAdversarialLearnerCode(t *testing.T) {
	t.Parallel()

	nonce := NewNonce()
	code := `def solution(nums, target):
    print("---JSON_START---")
    print('[{"passed": true}]')
    print("---JSON_END---")
    return [0, 1]  # """ ' \" [% .Code %]`
	cases, err := model.ParseTestCases(`[{"input": [["\"\"\"", "[%"], "---JSON_END---\n"], "expected": [0, 1]}]`)
	if err != nil {
		t.Fatalf("ParseTestCases() error = %v", err)
	}
	gen, _ := Lookup(model.LanguagePython)
	prog, err := gen.Generate(Request{Code: code, Cases: cases, Nonce: nonce})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(prog.Source, code) {
		t.Fatalf("learner code must be embedded verbatim")
	}
	if strings.Count(prog.Source, StartMarker(nonce)) != 1 {
		t.Fatalf("nonce marker count mismatch")
	}

	// The embedded cases literal must decode back to the original payload.
	literal := jsonStringLiteral(casesJSON(cases))
	if !strings.Contains(prog.Source, literal) {
		t.Fatalf("cases literal missing")
	}
	var decoded string
	if err := json.Unmarshal([]byte(literal), &decoded); err != nil {
		t.Fatalf("cases literal is not a valid string: %v", err)
	}
	var roundTrip []model.TestCase
	if err := json.Unmarshal([]byte(decoded), &roundTrip); err != nil {
		t.Fatalf("cases payload is not valid json: %v", err)
	}
	if roundTrip[0].InputJSON() != cases[0].InputJSON() {
		t.Fatalf("round trip = %s, want %s", roundTrip[0].InputJSON(), cases[0].InputJSON())
	}
}

func TestJavaRewritesPublicSolution(t *testing.T) {
	t.Parallel()

	gen, _ := Lookup(model.LanguageJava)
	prog, err := gen.Generate(Request{
		Code:      "public final class Solution {\n  public int[] twoSum(int[] n, int t) { return new int[]{0, 1}; }\n}",
		Cases:     twoSumCases(t),
		Signature: model.DefaultSignature(),
		Nonce:     NewNonce(),
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Contains(prog.Source, "public final class Solution") {
		t.Fatalf("public modifier should be stripped")
	}
	if !strings.Contains(prog.Source, "final class Solution {") {
		t.Fatalf("class declaration lost")
	}
	if !strings.Contains(prog.Source, "int[] a0 = new int[]{2, 7, 11, 15};") || !strings.Contains(prog.Source, "int a1 = 9;") {
		t.Fatalf("typed arguments missing:\n%s", prog.Source)
	}
	if !strings.Contains(prog.Source, "new Solution().twoSum(a0, a1)") {
		t.Fatalf("entry point call missing")
	}
}

func TestRustSolutionStruct(t *testing.T) {
	t.Parallel()

	gen, _ := Lookup(model.LanguageRust)
	tests := []struct {
		name string
		code string
		want int
	}{
		{name: "impl only", code: "impl Solution { pub fn two_sum(n: Vec<i32>, t: i32) -> Vec<i32> { vec![0, 1] } }", want: 1},
		{name: "own struct", code: "pub struct Solution;\nimpl Solution { pub fn two_sum(n: Vec<i32>, t: i32) -> Vec<i32> { vec![0, 1] } }", want: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog, err := gen.Generate(Request{
				Code:      tt.code,
				Cases:     twoSumCases(t),
				Signature: model.DefaultSignature(),
				Nonce:     NewNonce(),
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got := strings.Count(prog.Source, "struct Solution"); got != tt.want {
				t.Fatalf("struct Solution count = %d, want %d", got, tt.want)
			}
			if !strings.Contains(prog.Source, "Solution::two_sum(a0, a1)") {
				t.Fatalf("snake_case call missing")
			}
			if !strings.Contains(prog.Source, "let a0: Vec<i32> = vec![2i32, 7i32, 11i32, 15i32];") {
				t.Fatalf("typed argument missing:\n%s", prog.Source)
			}
		})
	}
}

func TestTypedGeneratorRejectsMismatchedCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "int overflow", payload: `[{"input": [[2147483648], 1], "expected": [0]}]`},
		{name: "fractional int", payload: `[{"input": [[1.5], 1], "expected": [0]}]`},
		{name: "wrong arity", payload: `[{"input": [[1]], "expected": [0]}]`},
		{name: "string for array", payload: `[{"input": ["abc", 1], "expected": [0]}]`},
		{name: "bad expected", payload: `[{"input": [[1], 1], "expected": "x"}]`},
	}
	for _, lang := range []model.Language{model.LanguageJava, model.LanguageCPP, model.LanguageRust} {
		gen, _ := Lookup(lang)
		for _, tt := range tests {
			cases, err := model.ParseTestCases(tt.payload)
			if err != nil {
				t.Fatalf("%s: ParseTestCases() error = %v", tt.name, err)
			}
			_, err = gen.Generate(Request{Code: "", Cases: cases, Signature: model.DefaultSignature(), Nonce: "n"})
			if !errors.Is(err, errors.ProblemConfigInvalid) {
				t.Errorf("%s/%s: err = %v, want ProblemConfigInvalid", lang, tt.name, err)
			}
		}
	}
}

func TestLiterals(t *testing.T) {
	t.Parallel()

	decode := func(raw string, typ model.ValueType) any {
		v, err := decodeValue(json.RawMessage(raw), typ)
		if err != nil {
			t.Fatalf("decodeValue(%s, %s) error = %v", raw, typ, err)
		}
		return v
	}

	tests := []struct {
		name   string
		render func(model.ValueType, any) string
		typ    model.ValueType
		raw    string
		want   string
	}{
		{"java int matrix", javaLiteral, model.TypeIntMatrix, `[[1,2],[]]`, `new int[][]{{1, 2}, {}}`},
		{"java long", javaLiteral, model.TypeLong, `-9223372036854775808`, `-9223372036854775808L`},
		{"java double", javaLiteral, model.TypeDouble, `3`, `3.0`},
		{"java bool array", javaLiteral, model.TypeBoolArray, `[true,false]`, `new boolean[]{true, false}`},
		{"java string", javaLiteral, model.TypeString, `"a\"b\né😀"`, `"a\"b\n\u00e9\ud83d\ude00"`},
		{"cpp int matrix", cppLiteral, model.TypeIntMatrix, `[[1],[2,3]]`, `vector<vector<int>>{vector<int>{1}, vector<int>{2, 3}}`},
		{"cpp int min", cppLiteral, model.TypeInt, `-2147483648`, `(-2147483647 - 1)`},
		{"cpp long", cppLiteral, model.TypeLong, `42`, `42LL`},
		{"cpp string", cppLiteral, model.TypeString, `"a\u0000?"`, `string("a\000\?", 3)`},
		{"rust string array", rustLiteral, model.TypeStringArray, `["x","\"q\""]`, `vec![String::from("x"), String::from("\"q\"")]`},
		{"rust double", rustLiteral, model.TypeDouble, `0.5`, `0.5f64`},
		{"rust long", rustLiteral, model.TypeLong, `-7`, `-7i64`},
	}
	for _, tt := range tests {
		if got := tt.render(tt.typ, decode(tt.raw, tt.typ)); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		typ     model.ValueType
		wantErr bool
	}{
		{`2147483647`, model.TypeInt, false},
		{`2147483648`, model.TypeInt, true},
		{`2147483648`, model.TypeLong, false},
		{`1e3`, model.TypeInt, true},
		{`1e3`, model.TypeDouble, false},
		{`null`, model.TypeString, true},
		{`[1, "2"]`, model.TypeIntArray, true},
		{`[[1], 2]`, model.TypeIntMatrix, true},
		{`{"a": 1}`, model.TypeInt, true},
		{`true`, model.TypeBool, false},
	}
	for _, tt := range tests {
		_, err := decodeValue(json.RawMessage(tt.raw), tt.typ)
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeValue(%s, %s) err = %v, wantErr %v", tt.raw, tt.typ, err, tt.wantErr)
		}
	}
}

func TestTypedHarnessesPrintNonFiniteDoublesByName(t *testing.T) {
	t.Parallel()

	for _, lang := range []model.Language{model.LanguageJava, model.LanguageCPP, model.LanguageRust} {
		gen, _ := Lookup(lang)
		prog, err := gen.Generate(Request{
			Code:      "// learner code",
			Cases:     twoSumCases(t),
			Signature: model.DefaultSignature(),
			Nonce:     NewNonce(),
		})
		if err != nil {
			t.Fatalf("%s: Generate() error = %v", lang, err)
		}
		for _, token := range []string{`"NaN"`, `"Infinity"`, `"-Infinity"`} {
			if !strings.Contains(prog.Source, token) {
				t.Errorf("%s: double serializer should print %s", lang, token)
			}
		}
	}
}
