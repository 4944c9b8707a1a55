package operator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// AggFunc names a grouped aggregation.
type AggFunc string

const (
	AggSum      AggFunc = "sum"
	AggCount    AggFunc = "count"
	AggAvg      AggFunc = "avg"
	AggMax      AggFunc = "max"
	AggMin      AggFunc = "min"
	AggFirst    AggFunc = "first"
	AggLast     AggFunc = "last"
	AggDistinct AggFunc = "distinct"
)

var aggFuncs = map[string]AggFunc{
	"sum":      AggSum,
	"count":    AggCount,
	"avg":      AggAvg,
	"average":  AggAvg,
	"mean":     AggAvg,
	"max":      AggMax,
	"min":      AggMin,
	"first":    AggFirst,
	"last":     AggLast,
	"distinct": AggDistinct,
}

// AggSpec computes Output as Func over Field. An empty Field with AggCount
// counts rows.
type AggSpec struct {
	Output string
	Func   AggFunc
	Field  string
}

// callSpec is the decoded form of "fn(a, b)", "fn:a" or ["fn", "a", ...].
type callSpec struct {
	fn   string
	args []string
}

// parseCall reads one function-call specification in any of its wire forms.
func parseCall(raw any) (callSpec, error) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if open := strings.Index(s, "("); open >= 0 {
			if !strings.HasSuffix(s, ")") {
				return callSpec{}, fmt.Errorf("malformed call %q", v)
			}
			spec := callSpec{fn: strings.TrimSpace(s[:open])}
			for _, a := range strings.Split(s[open+1:len(s)-1], ",") {
				if a = strings.TrimSpace(a); a != "" {
					spec.args = append(spec.args, a)
				}
			}
			return spec, nil
		}
		if fn, arg, ok := strings.Cut(s, ":"); ok {
			spec := callSpec{fn: strings.TrimSpace(fn)}
			if arg = strings.TrimSpace(arg); arg != "" {
				spec.args = []string{arg}
			}
			return spec, nil
		}
		return callSpec{fn: s}, nil
	case []any:
		if len(v) == 0 {
			return callSpec{}, fmt.Errorf("empty call specification")
		}
		spec := callSpec{fn: dataset.FromAny(v[0]).AsString()}
		for _, a := range v[1:] {
			spec.args = append(spec.args, dataset.FromAny(a).AsString())
		}
		return spec, nil
	case []string:
		if len(v) == 0 {
			return callSpec{}, fmt.Errorf("empty call specification")
		}
		return callSpec{fn: v[0], args: v[1:]}, nil
	default:
		return callSpec{}, fmt.Errorf("unsupported call specification %T", raw)
	}
}

// ParseAggSpec reads a single aggregation for output.
func ParseAggSpec(output string, raw any) (AggSpec, error) {
	call, err := parseCall(raw)
	if err != nil {
		return AggSpec{}, fmt.Errorf("aggregation %s: %w", output, err)
	}
	fn, ok := aggFuncs[strings.ToLower(call.fn)]
	if !ok {
		return AggSpec{}, fmt.Errorf("aggregation %s: unknown function %q", output, call.fn)
	}
	spec := AggSpec{Output: output, Func: fn}
	if len(call.args) > 0 && call.args[0] != "*" {
		spec.Field = call.args[0]
	}
	if spec.Field == "" && fn != AggCount {
		return AggSpec{}, fmt.Errorf("aggregation %s: %s needs a field", output, fn)
	}
	return spec, nil
}

// ParseAggSpecs reads an output-field to aggregation mapping. The result is
// ordered by output name.
func ParseAggSpecs(raw map[string]any) ([]AggSpec, error) {
	outputs := make([]string, 0, len(raw))
	for k := range raw {
		outputs = append(outputs, k)
	}
	sort.Strings(outputs)
	specs := make([]AggSpec, 0, len(outputs))
	for _, out := range outputs {
		spec, err := ParseAggSpec(out, raw[out])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// accumulator folds the rows of one group for one AggSpec.
type accumulator struct {
	spec     AggSpec
	rows     int
	count    int
	sum      float64
	numeric  int
	best     float64
	first    dataset.Value
	last     dataset.Value
	distinct map[string]struct{}
}

func newAccumulator(spec AggSpec) *accumulator {
	acc := &accumulator{spec: spec}
	if spec.Func == AggDistinct {
		acc.distinct = make(map[string]struct{})
	}
	return acc
}

func (a *accumulator) add(row dataset.Row) {
	a.rows++
	v := row.Get(a.spec.Field)
	if a.rows == 1 {
		a.first = v
	}
	a.last = v
	if v.IsNull() {
		return
	}
	a.count++
	if a.distinct != nil {
		a.distinct[dataset.KeyOf([]dataset.Value{v})] = struct{}{}
	}
	f, ok := v.AsNumber()
	if !ok {
		return
	}
	a.sum += f
	a.numeric++
	switch {
	case a.numeric == 1:
		a.best = f
	case a.spec.Func == AggMax && f > a.best:
		a.best = f
	case a.spec.Func == AggMin && f < a.best:
		a.best = f
	}
}

func (a *accumulator) result() dataset.Value {
	switch a.spec.Func {
	case AggSum:
		return dataset.Number(a.sum)
	case AggCount:
		if a.spec.Field == "" {
			return dataset.Number(float64(a.rows))
		}
		return dataset.Number(float64(a.count))
	case AggAvg:
		if a.numeric == 0 {
			return dataset.Null()
		}
		return dataset.Number(a.sum / float64(a.numeric))
	case AggMax, AggMin:
		if a.numeric == 0 {
			return dataset.Null()
		}
		return dataset.Number(a.best)
	case AggFirst:
		return a.first
	case AggLast:
		return a.last
	case AggDistinct:
		return dataset.Number(float64(len(a.distinct)))
	default:
		return dataset.Null()
	}
}

// aggregate folds the indexed rows with spec.
func aggregate(rows []dataset.Row, idx []int, spec AggSpec) dataset.Value {
	acc := newAccumulator(spec)
	for _, i := range idx {
		acc.add(rows[i])
	}
	return acc.result()
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
