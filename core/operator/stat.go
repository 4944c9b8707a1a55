package operator

import (
	"slices"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// StatDataSet aggregates ds per distinct groupBy tuple. The result holds one row
// per group, sorted ascending by group tuple, with the group fields followed by
// one field per spec.
func StatDataSet(ds *dataset.DataSet, name string, groupBy []string, specs []AggSpec) *dataset.DataSet {
	out := &dataset.DataSet{
		Name:       targetName(name, ds),
		Dimensions: slices.Clone(groupBy),
		Sorted:     true,
	}
	if ds == nil {
		return out
	}

	groups := groupRows(ds.Rows, groupBy)
	out.Rows = make([]dataset.Row, 0, len(groups))
	for _, g := range groups {
		row := make(dataset.Row, len(groupBy)+len(specs))
		for i, f := range groupBy {
			row[f] = g.key[i]
		}
		for _, spec := range specs {
			row[spec.Output] = aggregate(ds.Rows, g.rows, spec)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
