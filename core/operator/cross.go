package operator

import (
	"slices"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// CrossColumnSeparator joins the values of a column header tuple into a field name.
const CrossColumnSeparator = ":"

// CrossCountField names the single cell column when no column header is given.
const CrossCountField = "count"

// CrossCollisionPrefix is prepended to a cell column whose name equals one of
// the row header fields.
const CrossCollisionPrefix = "_"

// CrossTabulation pivots ds: each distinct rowHeader tuple becomes a row and
// each distinct colHeader tuple a field. Cells hold the number of matching rows,
// or cell applied to them when it is non-nil. Combinations with no rows are 0.
// A column named like a row header field takes CrossCollisionPrefix until the
// name is free.
func CrossTabulation(ds *dataset.DataSet, name string, rowHeader, colHeader []string, cell *AggSpec) *dataset.DataSet {
	out := &dataset.DataSet{
		Name:       targetName(name, ds),
		Dimensions: slices.Clone(rowHeader),
		Sorted:     true,
	}
	if ds == nil {
		return out
	}

	spec := AggSpec{Func: AggCount}
	if cell != nil {
		spec = *cell
	}

	reserved := make(map[string]bool, len(rowHeader))
	for _, f := range rowHeader {
		reserved[f] = true
	}
	cellName := func(col string) string {
		for reserved[col] {
			col = CrossCollisionPrefix + col
		}
		return col
	}

	// Column names, in ascending column tuple order.
	var columns []string
	columnOf := make([]string, len(ds.Rows))
	if len(colHeader) == 0 {
		col := CrossCountField
		if cell != nil && cell.Output != "" {
			col = cell.Output
		}
		col = cellName(col)
		columns = []string{col}
		for i := range columnOf {
			columnOf[i] = col
		}
	} else {
		for _, g := range groupRows(ds.Rows, colHeader) {
			col := cellName(columnName(g.key))
			columns = append(columns, col)
			for _, idx := range g.rows {
				columnOf[idx] = col
			}
		}
	}

	for _, g := range groupRows(ds.Rows, rowHeader) {
		row := make(dataset.Row, len(rowHeader)+len(columns))
		for i, f := range rowHeader {
			row[f] = g.key[i]
		}
		cells := make(map[string][]int, len(columns))
		for _, idx := range g.rows {
			cells[columnOf[idx]] = append(cells[columnOf[idx]], idx)
		}
		for _, col := range columns {
			idx, ok := cells[col]
			if !ok {
				row[col] = dataset.Number(0)
				continue
			}
			row[col] = aggregate(ds.Rows, idx, spec)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func columnName(key []dataset.Value) string {
	parts := make([]string, len(key))
	for i, v := range key {
		parts[i] = v.AsString()
	}
	return strings.Join(parts, CrossColumnSeparator)
}
