package operator

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// AnalyseFunc names a position-dependent computation within a partition.
type AnalyseFunc string

const (
	RunningSum     AnalyseFunc = "runningSum"
	Rank           AnalyseFunc = "rank"
	DenseRank      AnalyseFunc = "denseRank"
	RowNumber      AnalyseFunc = "rowNumber"
	PercentOfTotal AnalyseFunc = "percentOfTotal"
	MovingAvg      AnalyseFunc = "movingAvg"
	Lag            AnalyseFunc = "lag"
	Lead           AnalyseFunc = "lead"
)

var analyseFuncs = map[string]AnalyseFunc{
	"runningsum":     RunningSum,
	"cumsum":         RunningSum,
	"rank":           Rank,
	"denserank":      DenseRank,
	"rownumber":      RowNumber,
	"percentoftotal": PercentOfTotal,
	"movingavg":      MovingAvg,
	"lag":            Lag,
	"lead":           Lead,
}

// DefaultMovingWindow is the trailing window of movingAvg when none is given.
const DefaultMovingWindow = 3

// AnalyseSpec computes Output with Func. Field is required for every function
// but rank, denseRank and rowNumber. N is the window for movingAvg and the
// offset for lag and lead.
type AnalyseSpec struct {
	Output string
	Func   AnalyseFunc
	Field  string
	N      int
}

// ParseAnalyseSpec reads one analytic specification, e.g. "rank()",
// "runningSum(amount)", "movingAvg(amount, 5)" or ["lag", "amount", 2].
func ParseAnalyseSpec(output string, raw any) (AnalyseSpec, error) {
	call, err := parseCall(raw)
	if err != nil {
		return AnalyseSpec{}, fmt.Errorf("analysis %s: %w", output, err)
	}
	fn, ok := analyseFuncs[strings.ToLower(call.fn)]
	if !ok {
		return AnalyseSpec{}, fmt.Errorf("analysis %s: unknown function %q", output, call.fn)
	}
	spec := AnalyseSpec{Output: output, Func: fn, N: 1}
	if len(call.args) > 0 {
		spec.Field = call.args[0]
	}
	switch fn {
	case Rank, DenseRank, RowNumber:
		spec.Field = ""
		return spec, nil
	case MovingAvg:
		spec.N = DefaultMovingWindow
	}
	if spec.Field == "" {
		return AnalyseSpec{}, fmt.Errorf("analysis %s: %s needs a field", output, fn)
	}
	if len(call.args) > 1 {
		spec.N = atoiDefault(call.args[1], spec.N)
	}
	return spec, nil
}

// ParseAnalyseSpecs reads an output-field to analytic function mapping, ordered
// by output name.
func ParseAnalyseSpecs(raw map[string]any) ([]AnalyseSpec, error) {
	outputs := make([]string, 0, len(raw))
	for k := range raw {
		outputs = append(outputs, k)
	}
	sort.Strings(outputs)
	specs := make([]AnalyseSpec, 0, len(outputs))
	for _, out := range outputs {
		spec, err := ParseAnalyseSpec(out, raw[out])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// AnalyseDataSet partitions ds by groupBy, orders each partition stably by
// orderBy and emits one row per input row with the computed fields added. Rows
// come out ordered by partition key, then by order key.
func AnalyseDataSet(ds *dataset.DataSet, name string, groupBy, orderBy []string, specs []AnalyseSpec) *dataset.DataSet {
	keys := parseSortKeys(orderBy)
	out := &dataset.DataSet{Name: targetName(name, ds), Sorted: true}
	out.Dimensions = slices.Clone(groupBy)
	for _, k := range keys {
		out.Dimensions = append(out.Dimensions, k.field)
	}
	if ds == nil {
		return out
	}

	out.Rows = make([]dataset.Row, 0, len(ds.Rows))
	for _, g := range groupRows(ds.Rows, groupBy) {
		part := make([]dataset.Row, len(g.rows))
		for i, idx := range g.rows {
			part[i] = ds.Rows[idx]
		}
		sort.SliceStable(part, func(i, j int) bool {
			return compareRows(part[i], part[j], keys) < 0
		})

		result := make([]dataset.Row, len(part))
		for i, row := range part {
			result[i] = row.Clone()
		}
		for _, spec := range specs {
			analyse(part, result, keys, spec)
		}
		out.Rows = append(out.Rows, result...)
	}
	return out
}

// analyse writes spec.Output into every row of result, reading the ordered
// partition part.
func analyse(part, result []dataset.Row, keys []sortKey, spec AnalyseSpec) {
	switch spec.Func {
	case RowNumber:
		for i := range result {
			result[i][spec.Output] = dataset.Number(float64(i + 1))
		}
	case Rank, DenseRank:
		rank, dense := 0, 0
		for i := range result {
			if i == 0 || compareRows(part[i-1], part[i], keys) != 0 {
				rank = i + 1
				dense++
			}
			if spec.Func == Rank {
				result[i][spec.Output] = dataset.Number(float64(rank))
			} else {
				result[i][spec.Output] = dataset.Number(float64(dense))
			}
		}
	case RunningSum:
		total := 0.0
		for i, row := range part {
			if f, ok := row.Get(spec.Field).AsNumber(); ok {
				total += f
			}
			result[i][spec.Output] = dataset.Number(total)
		}
	case PercentOfTotal:
		total := 0.0
		for _, row := range part {
			if f, ok := row.Get(spec.Field).AsNumber(); ok {
				total += f
			}
		}
		for i, row := range part {
			f, ok := row.Get(spec.Field).AsNumber()
			if !ok || total == 0 {
				result[i][spec.Output] = dataset.Null()
				continue
			}
			result[i][spec.Output] = dataset.Number(f / total)
		}
	case MovingAvg:
		window := max(spec.N, 1)
		for i := range part {
			sum, n := 0.0, 0
			for j := max(0, i-window+1); j <= i; j++ {
				if f, ok := part[j].Get(spec.Field).AsNumber(); ok {
					sum += f
					n++
				}
			}
			if n == 0 {
				result[i][spec.Output] = dataset.Null()
				continue
			}
			result[i][spec.Output] = dataset.Number(sum / float64(n))
		}
	case Lag, Lead:
		offset := max(spec.N, 1)
		if spec.Func == Lag {
			offset = -offset
		}
		for i := range part {
			j := i + offset
			if j < 0 || j >= len(part) {
				result[i][spec.Output] = dataset.Null()
				continue
			}
			result[i][spec.Output] = part[j].Get(spec.Field)
		}
	}
}
