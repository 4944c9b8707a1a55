package formula

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// builtin describes a callable function. Exactly one of call or lazy is set;
// lazy functions receive unevaluated arguments so they can short-circuit.
type builtin struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	call             func(args []dataset.Value) (dataset.Value, error)
	lazy             func(row dataset.Row, args []node) (dataset.Value, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"if":     {minArgs: 3, maxArgs: 3, lazy: fnIf},
		"ifnull": {minArgs: 2, maxArgs: 2, lazy: fnIfNull},
		"nvl":    {minArgs: 2, maxArgs: 2, lazy: fnIfNull},
		"upper":  {minArgs: 1, maxArgs: 1, call: stringFn(strings.ToUpper)},
		"lower":  {minArgs: 1, maxArgs: 1, call: stringFn(strings.ToLower)},
		"trim":   {minArgs: 1, maxArgs: 1, call: stringFn(strings.TrimSpace)},
		"len":    {minArgs: 1, maxArgs: 1, call: fnLen},
		"substr": {minArgs: 2, maxArgs: 3, call: fnSubstr},
		"concat": {minArgs: 0, maxArgs: -1, call: fnConcat},
		"abs":    {minArgs: 1, maxArgs: 1, call: fnAbs},
		"round":  {minArgs: 1, maxArgs: 2, call: fnRound},
		"year":   {minArgs: 1, maxArgs: 1, call: datePart(func(y, m, d int) int { return y })},
		"month":  {minArgs: 1, maxArgs: 1, call: datePart(func(y, m, d int) int { return m })},
		"day":    {minArgs: 1, maxArgs: 1, call: datePart(func(y, m, d int) int { return d })},
	}
}

// Functions returns the names of the available functions.
func Functions() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

func errf(format string, args ...any) error {
	return &rowError{msg: fmt.Sprintf(format, args...)}
}

func fnIf(row dataset.Row, args []node) (dataset.Value, error) {
	cond, err := args[0].eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	if cond.Truthy() {
		return args[1].eval(row)
	}
	return args[2].eval(row)
}

func fnIfNull(row dataset.Row, args []node) (dataset.Value, error) {
	v, err := args[0].eval(row)
	if err != nil {
		return dataset.Null(), err
	}
	if !v.IsNull() {
		return v, nil
	}
	return args[1].eval(row)
}

func stringFn(f func(string) string) func([]dataset.Value) (dataset.Value, error) {
	return func(args []dataset.Value) (dataset.Value, error) {
		if args[0].IsNull() {
			return dataset.Null(), nil
		}
		return dataset.String(f(args[0].AsString())), nil
	}
}

func fnLen(args []dataset.Value) (dataset.Value, error) {
	if args[0].IsNull() {
		return dataset.Number(0), nil
	}
	return dataset.Number(float64(utf8.RuneCountInString(args[0].AsString()))), nil
}

// fnSubstr takes a zero based start and an optional length; out of range
// bounds are clamped.
func fnSubstr(args []dataset.Value) (dataset.Value, error) {
	if args[0].IsNull() {
		return dataset.Null(), nil
	}
	runes := []rune(args[0].AsString())
	start, ok := args[1].AsNumber()
	if !ok {
		return dataset.Null(), errf("substr start must be numeric")
	}
	from := clamp(int(start), 0, len(runes))
	to := len(runes)
	if len(args) == 3 {
		n, ok := args[2].AsNumber()
		if !ok {
			return dataset.Null(), errf("substr length must be numeric")
		}
		to = clamp(from+int(n), from, len(runes))
	}
	return dataset.String(string(runes[from:to])), nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func fnConcat(args []dataset.Value) (dataset.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.AsString())
	}
	return dataset.String(sb.String()), nil
}

func fnAbs(args []dataset.Value) (dataset.Value, error) {
	if args[0].IsNull() {
		return dataset.Null(), nil
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return dataset.Null(), errf("abs needs a numeric argument, got %q", args[0].AsString())
	}
	return dataset.Number(math.Abs(f)), nil
}

func fnRound(args []dataset.Value) (dataset.Value, error) {
	if args[0].IsNull() {
		return dataset.Null(), nil
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return dataset.Null(), errf("round needs a numeric argument, got %q", args[0].AsString())
	}
	digits := 0.0
	if len(args) == 2 {
		if digits, ok = args[1].AsNumber(); !ok {
			return dataset.Null(), errf("round digits must be numeric")
		}
	}
	scale := math.Pow(10, math.Trunc(digits))
	return dataset.Number(math.Round(f*scale) / scale), nil
}

func datePart(pick func(y, m, d int) int) func([]dataset.Value) (dataset.Value, error) {
	return func(args []dataset.Value) (dataset.Value, error) {
		if args[0].IsNull() {
			return dataset.Null(), nil
		}
		t, ok := args[0].AsTime()
		if !ok {
			return dataset.Null(), errf("%q is not a date", args[0].AsString())
		}
		y, m, d := t.Date()
		return dataset.Number(float64(pick(y, int(m), d))), nil
	}
}
