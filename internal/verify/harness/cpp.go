package harness

import (
	"math"
	"strconv"

	"dailycode/internal/verify/model"
)

var cppTemplate = newTemplate("cpp", `#include <algorithm>
#include <climits>
#include <cmath>
#include <exception>
#include <functional>
#include <iomanip>
#include <iostream>
#include <map>
#include <numeric>
#include <queue>
#include <set>
#include <sstream>
#include <stack>
#include <string>
#include <unordered_map>
#include <unordered_set>
#include <vector>
using namespace std;

[% .Code %]

namespace dcj {
inline string str(const string& s) {
    ostringstream o;
    o << '"';
    for (unsigned char c : s) {
        switch (c) {
        case '"': o << "\\\""; break;
        case '\\': o << "\\\\"; break;
        case '\n': o << "\\n"; break;
        case '\r': o << "\\r"; break;
        case '\t': o << "\\t"; break;
        default:
            if (c < 0x20) {
                o << "\\u" << hex << setw(4) << setfill('0') << static_cast<int>(c) << dec;
            } else {
                o << c;
            }
        }
    }
    o << '"';
    return o.str();
}

inline string of(int v) { return to_string(v); }
inline string of(long long v) { return to_string(v); }
inline string of(double v) {
    if (isnan(v)) return "NaN";
    if (isinf(v)) return v > 0 ? "Infinity" : "-Infinity";
    ostringstream o;
    o << setprecision(17) << v;
    return o.str();
}
inline string of(bool v) { return v ? "true" : "false"; }
inline string of(const string& v) { return str(v); }

template <typename T>
string of(const vector<T>& v) {
    string out = "[";
    for (size_t i = 0; i < v.size(); ++i) {
        if (i) out += ",";
        out += of(v[i]);
    }
    return out + "]";
}

inline string entry(int index, bool passed, const string& actual, const vector<string>& logs, const string& error) {
    string out = "{\"index\":" + to_string(index) + ",\"passed\":" + (passed ? "true" : "false") +
                 ",\"actual\":" + str(actual) + ",\"logs\":[";
    for (size_t i = 0; i < logs.size(); ++i) {
        if (i) out += ",";
        out += str(logs[i]);
    }
    return out + "],\"error\":" + str(error) + "}";
}

inline vector<string> lines(const string& s) {
    vector<string> out;
    istringstream in(s);
    string line;
    while (getline(in, line)) {
        if (!line.empty()) out.push_back(line);
    }
    return out;
}
}  // namespace dcj

int main() {
    streambuf* realOut = cout.rdbuf();
    vector<string> results;
[% range .Cases %]    {
        ostringstream buf;
        cout.rdbuf(buf.rdbuf());
        string actual = "Error";
        string error;
        bool passed = false;
        try {
[% range .Args %]            [% . %]
[% end %]            [% .ReturnType %] expected = [% .Expected %];
            Solution dcSolution;
            [% .ReturnType %] result = dcSolution.[% $.Method %]([% .Call %]);
            actual = dcj::of(result);
            passed = result == expected;
        } catch (const exception& e) {
            error = string("exception: ") + e.what();
        } catch (...) {
            error = "unknown exception";
        }
        cout.flush();
        cout.rdbuf(realOut);
        vector<string> logs = dcj::lines(buf.str());
        if (!error.empty()) logs.push_back(error);
        results.push_back(dcj::entry([% .Index %], passed, actual, logs, error));
    }
[% end %]    cout << "\n" << [% .Start %] << "\n[";
    for (size_t i = 0; i < results.size(); ++i) {
        if (i) cout << ",";
        cout << results[i];
    }
    cout << "]\n" << [% .End %] << "\n";
    cout.flush();
    return 0;
}
`)

var cppTypes = typeSystem{
	typeName: cppType,
	literal:  cppLiteral,
	declare: func(name, typeName, literal string) string {
		return typeName + " " + name + " = " + literal + ";"
	},
}

func cppType(t model.ValueType) string {
	if elem, ok := t.Elem(); ok {
		return "vector<" + cppType(elem) + ">"
	}
	switch t {
	case model.TypeInt:
		return "int"
	case model.TypeLong:
		return "long long"
	case model.TypeDouble:
		return "double"
	case model.TypeBool:
		return "bool"
	default:
		return "string"
	}
}

func cppLiteral(t model.ValueType, v any) string {
	if _, ok := t.Elem(); ok {
		return cppType(t) + "{" + arrayLiteral(t, v, cppLiteral) + "}"
	}
	switch t {
	case model.TypeInt:
		i := v.(int64)
		if i == math.MinInt32 {
			return "(-2147483647 - 1)"
		}
		return strconv.FormatInt(i, 10)
	case model.TypeLong:
		i := v.(int64)
		if i == math.MinInt64 {
			return "(-9223372036854775807LL - 1)"
		}
		return strconv.FormatInt(i, 10) + "LL"
	case model.TypeDouble:
		return formatDouble(v.(float64))
	case model.TypeBool:
		return strconv.FormatBool(v.(bool))
	default:
		return cppString(v.(string))
	}
}

type cppGenerator struct{}

func (cppGenerator) Language() model.Language { return model.LanguageCPP }

func (cppGenerator) FileName() string { return "main.cpp" }

func (g cppGenerator) Generate(req Request) (Program, error) {
	views, err := buildCaseViews(req, cppTypes)
	if err != nil {
		return Program{}, err
	}
	src, err := render(cppTemplate, struct {
		Code, Method, Start, End string
		Cases                    []caseView
	}{
		Code:   req.Code,
		Method: req.Signature.Method,
		Start:  cppString(StartMarker(req.Nonce)),
		End:    cppString(EndMarker(req.Nonce)),
		Cases:  views,
	})
	if err != nil {
		return Program{}, err
	}
	return Program{FileName: g.FileName(), Source: src}, nil
}
