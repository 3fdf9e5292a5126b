package harness

import (
	"regexp"
	"strconv"

	"dailycode/internal/verify/model"
)

var javaTemplate = newTemplate("java", `import java.util.*;
import java.io.*;

[% .Code %]

class DcJson {
    static String of(int v) { return Integer.toString(v); }
    static String of(long v) { return Long.toString(v); }
    static String of(double v) {
        if (Double.isNaN(v)) return "NaN";
        if (Double.isInfinite(v)) return v > 0 ? "Infinity" : "-Infinity";
        return Double.toString(v);
    }
    static String of(boolean v) { return v ? "true" : "false"; }
    static String of(String v) {
        if (v == null) return "null";
        StringBuilder b = new StringBuilder("\"");
        for (int i = 0; i < v.length(); i++) {
            char c = v.charAt(i);
            switch (c) {
                case '"': b.append("\\\""); break;
                case '\\': b.append("\\\\"); break;
                case '\n': b.append("\\n"); break;
                case '\r': b.append("\\r"); break;
                case '\t': b.append("\\t"); break;
                default:
                    if (c < 0x20) b.append(String.format("\\u%04x", (int) c));
                    else b.append(c);
            }
        }
        return b.append('"').toString();
    }
    static String of(int[] v) {
        if (v == null) return "null";
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (int x : v) j.add(of(x));
        return j.toString();
    }
    static String of(long[] v) {
        if (v == null) return "null";
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (long x : v) j.add(of(x));
        return j.toString();
    }
    static String of(double[] v) {
        if (v == null) return "null";
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (double x : v) j.add(of(x));
        return j.toString();
    }
    static String of(boolean[] v) {
        if (v == null) return "null";
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (boolean x : v) j.add(of(x));
        return j.toString();
    }
    static String of(String[] v) {
        if (v == null) return "null";
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (String x : v) j.add(of(x));
        return j.toString();
    }
    static String of(int[][] v) {
        if (v == null) return "null";
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (int[] x : v) j.add(of(x));
        return j.toString();
    }

    static boolean eq(int a, int b) { return a == b; }
    static boolean eq(long a, long b) { return a == b; }
    static boolean eq(double a, double b) { return Double.compare(a, b) == 0; }
    static boolean eq(boolean a, boolean b) { return a == b; }
    static boolean eq(String a, String b) { return Objects.equals(a, b); }
    static boolean eq(int[] a, int[] b) { return Arrays.equals(a, b); }
    static boolean eq(long[] a, long[] b) { return Arrays.equals(a, b); }
    static boolean eq(double[] a, double[] b) { return Arrays.equals(a, b); }
    static boolean eq(boolean[] a, boolean[] b) { return Arrays.equals(a, b); }
    static boolean eq(String[] a, String[] b) { return Arrays.equals(a, b); }
    static boolean eq(int[][] a, int[][] b) { return Arrays.deepEquals(a, b); }

    static String entry(int index, boolean passed, String actual, List<String> logs, String error) {
        StringJoiner j = new StringJoiner(",", "[", "]");
        for (String line : logs) j.add(of(line));
        return "{\"index\":" + index + ",\"passed\":" + passed + ",\"actual\":" + of(actual)
            + ",\"logs\":" + j + ",\"error\":" + of(error) + "}";
    }

    static List<String> lines(String s) {
        List<String> out = new ArrayList<>();
        for (String line : s.split("\\r?\\n")) {
            if (!line.isEmpty()) out.add(line);
        }
        return out;
    }
}

public class Main {
    public static void main(String[] args) throws Exception {
        PrintStream realOut = System.out;
        List<String> results = new ArrayList<>();
[% range .Cases %]        {
            ByteArrayOutputStream buf = new ByteArrayOutputStream();
            System.setOut(new PrintStream(buf, true, "UTF-8"));
            String actual = "Error";
            String error = "";
            boolean passed = false;
            try {
[% range .Args %]                [% . %]
[% end %]                [% .ReturnType %] expected = [% .Expected %];
                [% .ReturnType %] result = new Solution().[% $.Method %]([% .Call %]);
                actual = DcJson.of(result);
                passed = DcJson.eq(result, expected);
            } catch (Throwable t) {
                error = t.getClass().getSimpleName() + ": " + t.getMessage();
            } finally {
                System.out.flush();
                System.setOut(realOut);
            }
            List<String> logs = DcJson.lines(buf.toString("UTF-8"));
            if (!error.isEmpty()) logs.add(error);
            results.add(DcJson.entry([% .Index %], passed, actual, logs, error));
        }
[% end %]        realOut.print("\n" + [% .Start %] + "\n[" + String.join(",", results) + "]\n" + [% .End %] + "\n");
        realOut.flush();
    }
}
`)

// Only Main may be public in Main.java.
var javaPublicSolution = regexp.MustCompile(`\bpublic\s+((?:final\s+)?class\s+Solution\b)`)

var javaTypes = typeSystem{
	typeName: javaType,
	literal:  javaLiteral,
	declare: func(name, typeName, literal string) string {
		return typeName + " " + name + " = " + literal + ";"
	},
}

func javaType(t model.ValueType) string {
	if elem, ok := t.Elem(); ok {
		return javaType(elem) + "[]"
	}
	switch t {
	case model.TypeInt:
		return "int"
	case model.TypeLong:
		return "long"
	case model.TypeDouble:
		return "double"
	case model.TypeBool:
		return "boolean"
	default:
		return "String"
	}
}

func javaLiteral(t model.ValueType, v any) string {
	if _, ok := t.Elem(); ok {
		return "new " + javaType(t) + javaArrayBody(t, v)
	}
	return javaScalar(t, v)
}

func javaArrayBody(t model.ValueType, v any) string {
	elem, _ := t.Elem()
	items, _ := v.([]any)
	return "{" + joinValues(items, func(item any) string {
		if _, nested := elem.Elem(); nested {
			return javaArrayBody(elem, item)
		}
		return javaScalar(elem, item)
	}) + "}"
}

func javaScalar(t model.ValueType, v any) string {
	switch t {
	case model.TypeInt:
		return strconv.FormatInt(v.(int64), 10)
	case model.TypeLong:
		return strconv.FormatInt(v.(int64), 10) + "L"
	case model.TypeDouble:
		return formatDouble(v.(float64))
	case model.TypeBool:
		return strconv.FormatBool(v.(bool))
	default:
		return javaString(v.(string))
	}
}

type javaGenerator struct{}

func (javaGenerator) Language() model.Language { return model.LanguageJava }

func (javaGenerator) FileName() string { return "Main.java" }

func (g javaGenerator) Generate(req Request) (Program, error) {
	views, err := buildCaseViews(req, javaTypes)
	if err != nil {
		return Program{}, err
	}
	src, err := render(javaTemplate, struct {
		Code, Method, Start, End string
		Cases                    []caseView
	}{
		Code:   javaPublicSolution.ReplaceAllString(req.Code, "$1"),
		Method: req.Signature.Method,
		Start:  javaString(StartMarker(req.Nonce)),
		End:    javaString(EndMarker(req.Nonce)),
		Cases:  views,
	})
	if err != nil {
		return Program{}, err
	}
	return Program{FileName: g.FileName(), Source: src}, nil
}
