package harness

import (
	"fmt"
	"strings"

	"dailycode/internal/verify/model"
	"dailycode/pkg/errors"
)

// typeSystem maps the signature vocabulary onto one statically typed language.
type typeSystem struct {
	typeName func(t model.ValueType) string
	literal  func(t model.ValueType, v any) string
	declare  func(name, typeName, literal string) string
}

// caseView is what a typed template sees for one test case.
type caseView struct {
	Index      int
	Args       []string
	Call       string
	ReturnType string
	Expected   string
}

func buildCaseViews(req Request, ts typeSystem) ([]caseView, error) {
	typed, err := typeCases(req.Cases, req.Signature)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ProblemConfigInvalid, "invalid test case configuration: %v", err)
	}
	views := make([]caseView, len(typed))
	for i, tc := range typed {
		view := caseView{
			Index:      i,
			Args:       make([]string, len(tc.Args)),
			ReturnType: ts.typeName(req.Signature.Returns),
			Expected:   ts.literal(req.Signature.Returns, tc.Expected),
		}
		names := make([]string, len(tc.Args))
		for j, arg := range tc.Args {
			t := req.Signature.Params[j]
			names[j] = fmt.Sprintf("a%d", j)
			view.Args[j] = ts.declare(names[j], ts.typeName(t), ts.literal(t, arg))
		}
		view.Call = strings.Join(names, ", ")
		views[i] = view
	}
	return views, nil
}

// arrayLiteral renders the elements of an array value with the element type.
func arrayLiteral(t model.ValueType, v any, literal func(model.ValueType, any) string) string {
	elem, _ := t.Elem()
	items, _ := v.([]any)
	return joinValues(items, func(item any) string { return literal(elem, item) })
}
