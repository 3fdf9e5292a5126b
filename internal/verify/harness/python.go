package harness

import (
	"dailycode/internal/verify/model"
)

var pythonTemplate = newTemplate("python", `import json as _dc_json
import sys as _dc_sys
import io as _dc_io
import contextlib as _dc_contextlib

[% .Code %]

def _dc_run():
    cases = _dc_json.loads([% .Cases %])
    results = []
    for i, case in enumerate(cases):
        buf = _dc_io.StringIO()
        actual = "Error"
        error = ""
        passed = False
        try:
            with _dc_contextlib.redirect_stdout(buf):
                value = solution(*case["input"])
            try:
                actual = _dc_json.dumps(value, separators=(",", ":"))
            except (TypeError, ValueError):
                actual = repr(value)
            passed = value == case["expected"]
        except BaseException as exc:
            if isinstance(exc, KeyboardInterrupt):
                raise
            error = "%s: %s" % (type(exc).__name__, exc)
        logs = buf.getvalue().splitlines()
        if error:
            logs.append(error)
        results.append({"index": i, "passed": passed, "actual": actual, "logs": logs, "error": error})
    _dc_sys.stdout.write("\n" + [% .Start %] + "\n" + _dc_json.dumps(results) + "\n" + [% .End %] + "\n")
    _dc_sys.stdout.flush()

_dc_run()
`)

type pythonGenerator struct{}

func (pythonGenerator) Language() model.Language { return model.LanguagePython }

func (pythonGenerator) FileName() string { return "main.py" }

func (g pythonGenerator) Generate(req Request) (Program, error) {
	src, err := render(pythonTemplate, struct {
		Code, Cases, Start, End string
	}{
		Code:  req.Code,
		Cases: jsonStringLiteral(casesJSON(req.Cases)),
		Start: jsonStringLiteral(StartMarker(req.Nonce)),
		End:   jsonStringLiteral(EndMarker(req.Nonce)),
	})
	if err != nil {
		return Program{}, err
	}
	return Program{FileName: g.FileName(), Source: src}, nil
}
