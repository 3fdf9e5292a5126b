package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"dailycode/internal/verify/model"
)

// decodeValue checks raw against t and returns int64, float64, bool, string
// or []any for arrays.
func decodeValue(raw json.RawMessage, t model.ValueType) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return coerce(v, t)
}

func coerce(v any, t model.ValueType) (any, error) {
	if elem, ok := t.Elem(); ok {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %s", t, describe(v))
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerce(item, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	switch t {
	case model.TypeInt, model.TypeLong:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %s", t, describe(v))
		}
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected %s, got %s", t, n)
		}
		if t == model.TypeInt && (i < math.MinInt32 || i > math.MaxInt32) {
			return nil, fmt.Errorf("%d overflows int", i)
		}
		return i, nil
	case model.TypeDouble:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected double, got %s", describe(v))
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected double, got %s", n)
		}
		return f, nil
	case model.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %s", describe(v))
		}
		return b, nil
	case model.TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", describe(v))
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", t)
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// typedCase is one test case checked against a signature.
type typedCase struct {
	Args     []any
	Expected any
}

func typeCases(cases []model.TestCase, sig model.Signature) ([]typedCase, error) {
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	out := make([]typedCase, len(cases))
	for i, tc := range cases {
		if len(tc.Input) != len(sig.Params) {
			return nil, fmt.Errorf("test %d: %d arguments, signature takes %d", i+1, len(tc.Input), len(sig.Params))
		}
		args := make([]any, len(tc.Input))
		for j, raw := range tc.Input {
			v, err := decodeValue(raw, sig.Params[j])
			if err != nil {
				return nil, fmt.Errorf("test %d argument %d: %w", i+1, j+1, err)
			}
			args[j] = v
		}
		exp, err := decodeValue(tc.Expected, sig.Returns)
		if err != nil {
			return nil, fmt.Errorf("test %d expected: %w", i+1, err)
		}
		out[i] = typedCase{Args: args, Expected: exp}
	}
	return out, nil
}

// formatDouble always yields a floating literal (never a bare integer).
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func joinValues(items []any, render func(any) string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = render(item)
	}
	return strings.Join(parts, ", ")
}

// jsonStringLiteral is valid as a string literal in JSON, JavaScript and Python.
func jsonStringLiteral(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// javaString escapes s for a Java string literal. Non-ASCII is written as
// UTF-16 \u escapes; control characters use octal so the \u pre-pass never
// produces a raw line terminator.
func javaString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				fmt.Fprintf(&b, `\%03o`, r)
			case r < 0x80:
				b.WriteRune(r)
			case r == utf8.RuneError:
				b.WriteString(`\ufffd`)
			case r > 0xffff:
				r -= 0x10000
				fmt.Fprintf(&b, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
			default:
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// cppString escapes s byte-wise for a C++ literal, returning a std::string
// constructor so embedded NULs survive.
func cppString(s string) string {
	var b strings.Builder
	b.WriteString(`string("`)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '?':
			b.WriteString(`\?`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\%03o`, c)
		default:
			b.WriteByte(c)
		}
	}
	fmt.Fprintf(&b, `", %d)`, len(s))
	return b.String()
}

// rustString escapes s for a Rust literal.
func rustString(s string) string {
	var b strings.Builder
	b.WriteString(`String::from("`)
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u{%x}`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteString(`")`)
	return b.String()
}
