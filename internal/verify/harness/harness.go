// Package harness wraps learner code in a per-language driver program that
// calls the entry point once per test case and prints one result block.
package harness

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"text/template"

	"dailycode/internal/verify/model"
)

const (
	startPrefix = "---JSON_START:"
	endPrefix   = "---JSON_END:"
	markerTail  = "---"
)

// Request is the input to a generator.
type Request struct {
	Code      string
	Cases     []model.TestCase
	Signature model.Signature
	Nonce     string
}

// Program is a generated single-file program.
type Program struct {
	FileName string
	Source   string
}

// Generator renders the driver program for one language.
type Generator interface {
	Language() model.Language
	FileName() string
	Generate(req Request) (Program, error)
}

// NewNonce returns 128 random bits as hex.
func NewNonce() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// StartMarker returns the opening sentinel for nonce.
func StartMarker(nonce string) string {
	return startPrefix + nonce + markerTail
}

// EndMarker returns the closing sentinel for nonce.
func EndMarker(nonce string) string {
	return endPrefix + nonce + markerTail
}

var generators = map[model.Language]Generator{}

func register(g Generator) {
	generators[g.Language()] = g
}

func init() {
	register(pythonGenerator{})
	register(javaGenerator{})
	register(cppGenerator{})
	register(rustGenerator{})
	register(javascriptGenerator{})
}

// Lookup returns the generator registered for lang.
func Lookup(lang model.Language) (Generator, bool) {
	g, ok := generators[lang]
	return g, ok
}

// Languages lists every language with a generator, sorted.
func Languages() []model.Language {
	out := make([]model.Language, 0, len(generators))
	for lang := range generators {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// newTemplate parses a driver template. `[%` `%]` delimiters keep the
// templates readable next to C-family braces.
func newTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Delims("[%", "%]").Parse(text))
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// casesJSON re-encodes the test cases as compact JSON for dynamic harnesses.
func casesJSON(cases []model.TestCase) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, tc := range cases {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"input":`)
		b.WriteString(tc.InputJSON())
		b.WriteString(`,"expected":`)
		b.WriteString(tc.ExpectedJSON())
		b.WriteString(`}`)
	}
	b.WriteByte(']')
	return b.String()
}
