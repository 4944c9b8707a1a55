package operator

import (
	"slices"
	"sort"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// CompareField holds the status of each row produced by CompareDataSets.
const CompareField = "_compare"

// Compare statuses.
const (
	StatusAdded     = "added"
	StatusRemoved   = "removed"
	StatusChanged   = "changed"
	StatusUnchanged = "unchanged"
)

// Suffixes of the before and after fields carried by changed rows.
const (
	BeforeSuffix = "_before"
	AfterSuffix  = "_after"
)

// CompareDataSets diffs candidate b against baseline a on the key fields pk.
// Both sides are sorted by key and merged in one pass. Rows whose key exists
// only in a are removed, only in b added. Rows present in both are changed when
// any non-key field differs, in which case the output carries the key plus
// before and after values of each differing field. Rows sharing a duplicate key
// are paired in order. An empty pk yields an empty dataset.
func CompareDataSets(a, b *dataset.DataSet, name string, pk []string, withUnchanged bool) *dataset.DataSet {
	out := &dataset.DataSet{Name: targetName(name, a), Dimensions: slices.Clone(pk), Sorted: true}
	if len(pk) == 0 {
		return out
	}
	var rowsA, rowsB []dataset.Row
	if a != nil {
		rowsA = a.Rows
	}
	if b != nil {
		rowsB = b.Rows
	}

	numeric := numericKeyFields(pk, rowsA, rowsB)
	cmp := func(x, y dataset.Row) int {
		for i, f := range pk {
			var c int
			if numeric[i] {
				fx, _ := x.Get(f).AsNumber()
				fy, _ := y.Get(f).AsNumber()
				switch {
				case fx < fy:
					c = -1
				case fx > fy:
					c = 1
				}
			} else {
				c = strings.Compare(x.Get(f).AsString(), y.Get(f).AsString())
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}

	ia := sortedIndex(rowsA, cmp)
	ib := sortedIndex(rowsB, cmp)

	isKey := make(map[string]bool, len(pk))
	for _, f := range pk {
		isKey[f] = true
	}

	i, j := 0, 0
	for i < len(ia) || j < len(ib) {
		var c int
		switch {
		case i >= len(ia):
			c = 1
		case j >= len(ib):
			c = -1
		default:
			c = cmp(rowsA[ia[i]], rowsB[ib[j]])
		}
		switch {
		case c < 0:
			out.Rows = append(out.Rows, withStatus(rowsA[ia[i]], StatusRemoved))
			i++
		case c > 0:
			out.Rows = append(out.Rows, withStatus(rowsB[ib[j]], StatusAdded))
			j++
		default:
			before, after := rowsA[ia[i]], rowsB[ib[j]]
			if diff := diffRow(before, after, pk, isKey); diff != nil {
				out.Rows = append(out.Rows, diff)
			} else if withUnchanged {
				out.Rows = append(out.Rows, withStatus(before, StatusUnchanged))
			}
			i++
			j++
		}
	}
	return out
}

// numericKeyFields reports, per key field, whether every value on both sides
// is numeric.
func numericKeyFields(pk []string, sides ...[]dataset.Row) []bool {
	numeric := make([]bool, len(pk))
	for i, f := range pk {
		numeric[i] = true
	scan:
		for _, rows := range sides {
			for _, row := range rows {
				if !row.Get(f).IsNumeric() {
					numeric[i] = false
					break scan
				}
			}
		}
	}
	return numeric
}

func sortedIndex(rows []dataset.Row, cmp func(x, y dataset.Row) int) []int {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		return cmp(rows[idx[x]], rows[idx[y]]) < 0
	})
	return idx
}

func withStatus(row dataset.Row, status string) dataset.Row {
	out := row.Clone()
	out[CompareField] = dataset.String(status)
	return out
}

// diffRow returns the changed row for a matched pair, or nil when every
// non-key field is identical. Unlike key matching, no numeric coercion applies.
func diffRow(before, after dataset.Row, pk []string, isKey map[string]bool) dataset.Row {
	fields := make(map[string]struct{}, len(before)+len(after))
	for f := range before {
		fields[f] = struct{}{}
	}
	for f := range after {
		fields[f] = struct{}{}
	}

	var diff dataset.Row
	for f := range fields {
		if isKey[f] || f == CompareField {
			continue
		}
		bv, av := before.Get(f), after.Get(f)
		if dataset.Identical(bv, av) {
			continue
		}
		if diff == nil {
			diff = make(dataset.Row)
		}
		diff[f+BeforeSuffix] = bv
		diff[f+AfterSuffix] = av
	}
	if diff == nil {
		return nil
	}
	for _, f := range pk {
		diff[f] = before.Get(f)
	}
	diff[CompareField] = dataset.String(StatusChanged)
	return diff
}
