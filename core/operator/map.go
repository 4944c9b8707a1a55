package operator

import (
	"sort"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/formula"
	"go.uber.org/zap"
)

type compiledField struct {
	name string
	expr *formula.Expression
}

// compileMapping compiles each formula of mapping through the shared cache, in
// sorted output-field order so logs are deterministic.
func compileMapping(mapping map[string]string) ([]compiledField, error) {
	names := make([]string, 0, len(mapping))
	for k := range mapping {
		names = append(names, k)
	}
	sort.Strings(names)

	fields := make([]compiledField, 0, len(names))
	for _, name := range names {
		expr, err := formula.DefaultCache.Compile(mapping[name])
		if err != nil {
			return nil, err
		}
		fields = append(fields, compiledField{name: name, expr: expr})
	}
	return fields, nil
}

// MapDataSet builds a dataset with one row per input row holding exactly the
// fields of mapping, each computed by its formula. A formula that fails on a
// row yields a null cell. An empty mapping returns nil: no dataset is produced.
func MapDataSet(ds *dataset.DataSet, name string, mapping map[string]string, log *zap.Logger) (*dataset.DataSet, error) {
	return deriveFields(ds, name, mapping, false, log)
}

// AppendFields is like MapDataSet but keeps every original field, overwriting
// those named in mapping.
func AppendFields(ds *dataset.DataSet, name string, mapping map[string]string, log *zap.Logger) (*dataset.DataSet, error) {
	return deriveFields(ds, name, mapping, true, log)
}

func deriveFields(ds *dataset.DataSet, name string, mapping map[string]string, keep bool, log *zap.Logger) (*dataset.DataSet, error) {
	if len(mapping) == 0 || ds == nil {
		return nil, nil
	}
	log = nopIfNil(log)
	fields, err := compileMapping(mapping)
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, len(ds.Rows))
	for i, src := range ds.Rows {
		var row dataset.Row
		if keep {
			row = src.Clone()
		} else {
			row = make(dataset.Row, len(fields))
		}
		for _, f := range fields {
			v, err := f.expr.Eval(src)
			if err != nil {
				log.Warn("Formula failed on row, field set to null",
					zap.String("dataset", ds.Name),
					zap.Int("row", i),
					zap.String("field", f.name),
					zap.Error(err))
			}
			row[f.name] = v
		}
		rows[i] = row
	}

	out := dataset.New(targetName(name, ds), rows)
	if keep {
		out.Dimensions = ds.Dimensions
		out.Sorted = ds.Sorted
	}
	return out, nil
}

// FilterDataSet keeps, in order, the rows for which predicate is truthy. Rows on
// which the predicate fails to evaluate are dropped. A blank predicate returns nil.
func FilterDataSet(ds *dataset.DataSet, name string, predicate string, log *zap.Logger) (*dataset.DataSet, error) {
	if predicate == "" || ds == nil {
		return nil, nil
	}
	log = nopIfNil(log)
	expr, err := formula.DefaultCache.Compile(predicate)
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, 0, len(ds.Rows))
	for i, row := range ds.Rows {
		v, err := expr.Eval(row)
		if err != nil {
			log.Warn("Filter failed on row, row skipped",
				zap.String("dataset", ds.Name),
				zap.Int("row", i),
				zap.Error(err))
			continue
		}
		if v.Truthy() {
			rows = append(rows, row.Clone())
		}
	}

	out := dataset.New(targetName(name, ds), rows)
	out.Dimensions = ds.Dimensions
	out.Sorted = ds.Sorted
	return out, nil
}
