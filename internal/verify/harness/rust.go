package harness

import (
	"regexp"
	"strconv"

	"dailycode/internal/verify/model"
)

// Learner stdout is not captured; per-test logs only carry panic messages.
var rustTemplate = newTemplate("rust", `[% .Code %]
[% if .NeedStruct %]
pub struct Solution;
[% end %]
#[allow(dead_code)]
mod dc_harness {
    use std::sync::Mutex;

    pub trait ToJson {
        fn to_json(&self) -> String;
    }

    impl ToJson for i32 {
        fn to_json(&self) -> String { self.to_string() }
    }
    impl ToJson for i64 {
        fn to_json(&self) -> String { self.to_string() }
    }
    impl ToJson for f64 {
        fn to_json(&self) -> String {
            if self.is_nan() {
                "NaN".to_string()
            } else if self.is_infinite() {
                if *self > 0.0 { "Infinity".to_string() } else { "-Infinity".to_string() }
            } else {
                format!("{:?}", self)
            }
        }
    }
    impl ToJson for bool {
        fn to_json(&self) -> String { self.to_string() }
    }
    impl ToJson for String {
        fn to_json(&self) -> String { quote(self) }
    }
    impl<T: ToJson> ToJson for Vec<T> {
        fn to_json(&self) -> String {
            let parts: Vec<String> = self.iter().map(|x| x.to_json()).collect();
            format!("[{}]", parts.join(","))
        }
    }

    pub fn quote(s: &str) -> String {
        let mut out = String::from("\"");
        for c in s.chars() {
            match c {
                '"' => out.push_str("\\\""),
                '\\' => out.push_str("\\\\"),
                '\n' => out.push_str("\\n"),
                '\r' => out.push_str("\\r"),
                '\t' => out.push_str("\\t"),
                c if (c as u32) < 0x20 => out.push_str(&format!("\\u{:04x}", c as u32)),
                c => out.push(c),
            }
        }
        out.push('"');
        out
    }

    pub fn entry(index: usize, passed: bool, actual: &str, logs: &[String], error: &str) -> String {
        let logs: Vec<String> = logs.iter().map(|l| quote(l)).collect();
        format!(
            "{{\"index\":{},\"passed\":{},\"actual\":{},\"logs\":[{}],\"error\":{}}}",
            index,
            passed,
            quote(actual),
            logs.join(","),
            quote(error)
        )
    }

    static LAST_PANIC: Mutex<String> = Mutex::new(String::new());

    pub fn install_hook() {
        std::panic::set_hook(Box::new(|info| {
            let payload = info.payload();
            let msg = if let Some(s) = payload.downcast_ref::<&str>() {
                s.to_string()
            } else if let Some(s) = payload.downcast_ref::<String>() {
                s.clone()
            } else {
                "panic".to_string()
            };
            if let Ok(mut last) = LAST_PANIC.lock() {
                *last = msg;
            }
        }));
    }

    pub fn take_panic() -> String {
        match LAST_PANIC.lock() {
            Ok(mut last) => std::mem::take(&mut *last),
            Err(_) => String::new(),
        }
    }
}

fn main() {
    use dc_harness::ToJson;
    dc_harness::install_hook();
    let mut results: Vec<String> = Vec::new();
[% range .Cases %]    {
        let outcome = std::panic::catch_unwind(|| {
[% range .Args %]            [% . %]
[% end %]            let expected: [% .ReturnType %] = [% .Expected %];
            let result: [% .ReturnType %] = Solution::[% $.Method %]([% .Call %]);
            (result.to_json(), result == expected)
        });
        let entry = match outcome {
            Ok((actual, passed)) => dc_harness::entry([% .Index %], passed, &actual, &[], ""),
            Err(_) => {
                let msg = format!("panic: {}", dc_harness::take_panic());
                dc_harness::entry([% .Index %], false, "Error", &[msg.clone()], &msg)
            }
        };
        results.push(entry);
    }
[% end %]    println!();
    println!("{}", [% .Start %]);
    println!("[{}]", results.join(","));
    println!("{}", [% .End %]);
}
`)

var rustSolutionStruct = regexp.MustCompile(`\bstruct\s+Solution\b`)

var rustTypes = typeSystem{
	typeName: rustType,
	literal:  rustLiteral,
	declare: func(name, typeName, literal string) string {
		return "let " + name + ": " + typeName + " = " + literal + ";"
	},
}

func rustType(t model.ValueType) string {
	if elem, ok := t.Elem(); ok {
		return "Vec<" + rustType(elem) + ">"
	}
	switch t {
	case model.TypeInt:
		return "i32"
	case model.TypeLong:
		return "i64"
	case model.TypeDouble:
		return "f64"
	case model.TypeBool:
		return "bool"
	default:
		return "String"
	}
}

func rustLiteral(t model.ValueType, v any) string {
	if _, ok := t.Elem(); ok {
		return "vec![" + arrayLiteral(t, v, rustLiteral) + "]"
	}
	switch t {
	case model.TypeInt:
		return strconv.FormatInt(v.(int64), 10) + "i32"
	case model.TypeLong:
		return strconv.FormatInt(v.(int64), 10) + "i64"
	case model.TypeDouble:
		return formatDouble(v.(float64)) + "f64"
	case model.TypeBool:
		return strconv.FormatBool(v.(bool))
	default:
		return rustString(v.(string))
	}
}

type rustGenerator struct{}

func (rustGenerator) Language() model.Language { return model.LanguageRust }

func (rustGenerator) FileName() string { return "main.rs" }

func (g rustGenerator) Generate(req Request) (Program, error) {
	sig := req.Signature
	sig.Method = sig.SnakeMethod()
	req.Signature = sig
	views, err := buildCaseViews(req, rustTypes)
	if err != nil {
		return Program{}, err
	}
	src, err := render(rustTemplate, struct {
		Code, Method, Start, End string
		NeedStruct               bool
		Cases                    []caseView
	}{
		Code:       req.Code,
		Method:     sig.Method,
		Start:      jsonStringLiteral(StartMarker(req.Nonce)),
		End:        jsonStringLiteral(EndMarker(req.Nonce)),
		NeedStruct: !rustSolutionStruct.MatchString(req.Code),
		Cases:      views,
	})
	if err != nil {
		return Program{}, err
	}
	return Program{FileName: g.FileName(), Source: src}, nil
}
