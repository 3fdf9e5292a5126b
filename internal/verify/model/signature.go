package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ValueType is the closed vocabulary used by statically typed harnesses.
type ValueType string

const (
	TypeInt         ValueType = "int"
	TypeLong        ValueType = "long"
	TypeDouble      ValueType = "double"
	TypeBool        ValueType = "bool"
	TypeString      ValueType = "string"
	TypeIntArray    ValueType = "int[]"
	TypeLongArray   ValueType = "long[]"
	TypeDoubleArray ValueType = "double[]"
	TypeBoolArray   ValueType = "bool[]"
	TypeStringArray ValueType = "string[]"
	TypeIntMatrix   ValueType = "int[][]"
)

var knownTypes = map[ValueType]struct{}{
	TypeInt: {}, TypeLong: {}, TypeDouble: {}, TypeBool: {}, TypeString: {},
	TypeIntArray: {}, TypeLongArray: {}, TypeDoubleArray: {}, TypeBoolArray: {},
	TypeStringArray: {}, TypeIntMatrix: {},
}

// Valid reports whether t is part of the vocabulary.
func (t ValueType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Elem returns the element type of an array type.
func (t ValueType) Elem() (ValueType, bool) {
	if !strings.HasSuffix(string(t), "[]") {
		return "", false
	}
	return ValueType(strings.TrimSuffix(string(t), "[]")), true
}

// Signature describes the entry point a typed harness calls on `Solution`.
type Signature struct {
	Method  string      `json:"method"`
	Params  []ValueType `json:"params"`
	Returns ValueType   `json:"returns"`
}

// DefaultSignature is the two-sum shape used when a problem stores none.
func DefaultSignature() Signature {
	return Signature{
		Method:  "twoSum",
		Params:  []ValueType{TypeIntArray, TypeInt},
		Returns: TypeIntArray,
	}
}

// ParseSignature decodes a stored signature, defaulting when empty.
func ParseSignature(payload string) (Signature, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "null" {
		return DefaultSignature(), nil
	}
	var sig Signature
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return Signature{}, err
	}
	if err := sig.Validate(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// IsZero reports whether no signature was set.
func (s Signature) IsZero() bool {
	return s.Method == "" && len(s.Params) == 0 && s.Returns == ""
}

// Validate checks the method name and every type.
func (s Signature) Validate() error {
	if !isIdentifier(s.Method) {
		return fmt.Errorf("invalid method name %q", s.Method)
	}
	for i, p := range s.Params {
		if !p.Valid() {
			return fmt.Errorf("param %d: unknown type %q", i, p)
		}
	}
	if !s.Returns.Valid() {
		return fmt.Errorf("unknown return type %q", s.Returns)
	}
	return nil
}

// SnakeMethod converts the camelCase method name, e.g. twoSum -> two_sum.
func (s Signature) SnakeMethod() string {
	var b strings.Builder
	for i, r := range s.Method {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
