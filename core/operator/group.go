// Package operator implements the tabular algorithms applied by pipeline steps.
// Every operator reads its input datasets and builds a new one; inputs are never
// modified.
package operator

import (
	"sort"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"go.uber.org/zap"
)

// group is a partition of a dataset: the key tuple and the indexes of the rows
// sharing it, in original order.
type group struct {
	key  []dataset.Value
	rows []int
}

// groupRows partitions rows by the values of fields and returns the groups
// sorted ascending by key tuple. With no fields every row lands in one group.
func groupRows(rows []dataset.Row, fields []string) []group {
	if len(fields) == 0 {
		idx := make([]int, len(rows))
		for i := range rows {
			idx[i] = i
		}
		if len(idx) == 0 {
			return nil
		}
		return []group{{rows: idx}}
	}

	byKey := make(map[string]int)
	var groups []group
	for i, row := range rows {
		tuple := row.Tuple(fields)
		k := dataset.KeyOf(tuple)
		pos, ok := byKey[k]
		if !ok {
			pos = len(groups)
			byKey[k] = pos
			groups = append(groups, group{key: tuple})
		}
		groups[pos].rows = append(groups[pos].rows, i)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return dataset.CompareTuples(groups[a].key, groups[b].key) < 0
	})
	return groups
}

// sortKey is one order-by term.
type sortKey struct {
	field string
	desc  bool
}

// parseSortKeys reads "field", "field asc" or "field desc" terms.
func parseSortKeys(terms []string) []sortKey {
	keys := make([]sortKey, 0, len(terms))
	for _, term := range terms {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		k := sortKey{field: parts[0]}
		if len(parts) > 1 && strings.EqualFold(parts[len(parts)-1], "desc") {
			k.desc = true
		}
		keys = append(keys, k)
	}
	return keys
}

// compareRows orders two rows by keys.
func compareRows(a, b dataset.Row, keys []sortKey) int {
	for _, k := range keys {
		c := dataset.Compare(a.Get(k.field), b.Get(k.field))
		if k.desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// SortDataSet returns a copy of ds stably ordered by the given terms.
func SortDataSet(ds *dataset.DataSet, name string, orderBy []string) *dataset.DataSet {
	out := ds.Clone(name)
	keys := parseSortKeys(orderBy)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return compareRows(out.Rows[i], out.Rows[j], keys) < 0
	})
	out.Sorted = true
	out.Dimensions = nil
	for _, k := range keys {
		out.Dimensions = append(out.Dimensions, k.field)
	}
	return out
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func targetName(name string, ds *dataset.DataSet) string {
	if name != "" {
		return name
	}
	if ds != nil {
		return ds.Name
	}
	return dataset.DefaultName
}
