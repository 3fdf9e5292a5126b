package harness

import (
	"dailycode/internal/verify/model"
)

// The local backend runs JavaScript in-process without this driver; it is
// used when javascript is routed to the remote service.
var javascriptTemplate = newTemplate("javascript", `[% .Code %]

;(function () {
  const cases = JSON.parse([% .Cases %]);
  const realLog = console.log;
  const show = (v) => (typeof v === "string" ? v : JSON.stringify(v));
  const same = (a, b) => JSON.stringify(a) === JSON.stringify(b);
  const results = [];
  for (let i = 0; i < cases.length; i++) {
    const logs = [];
    console.log = (...args) => logs.push(args.map(show).join(" "));
    let actual = "Error";
    let error = "";
    let passed = false;
    try {
      const value = solution(...cases[i].input);
      actual = value === undefined ? "undefined" : JSON.stringify(value);
      passed = same(value, cases[i].expected);
    } catch (e) {
      error = String(e && e.message ? e.message : e);
      logs.push(error);
    } finally {
      console.log = realLog;
    }
    results.push({ index: i, passed, actual, logs, error });
  }
  process.stdout.write("\n" + [% .Start %] + "\n" + JSON.stringify(results) + "\n" + [% .End %] + "\n");
})();
`)

type javascriptGenerator struct{}

func (javascriptGenerator) Language() model.Language { return model.LanguageJavaScript }

func (javascriptGenerator) FileName() string { return "main.js" }

func (g javascriptGenerator) Generate(req Request) (Program, error) {
	src, err := render(javascriptTemplate, struct {
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
