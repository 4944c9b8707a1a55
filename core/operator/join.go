package operator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// JoinType selects which unmatched rows a join keeps.
type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
	FullJoin  JoinType = "full"
)

// ParseJoinType reads a join type; blank means inner.
func ParseJoinType(s string) (JoinType, error) {
	switch JoinType(strings.ToLower(strings.TrimSpace(s))) {
	case "", InnerJoin:
		return InnerJoin, nil
	case LeftJoin:
		return LeftJoin, nil
	case RightJoin:
		return RightJoin, nil
	case FullJoin, "outer":
		return FullJoin, nil
	default:
		return "", fmt.Errorf("unknown join type %q", s)
	}
}

// JoinKey pairs a left field with the right field it must equal.
type JoinKey struct {
	Left  string
	Right string
}

// JoinDataSets matches rows of left and right whose key values are equal. Each
// matched pair produces one row holding the fields of both; on a name clash the
// left value wins. Unmatched rows are kept according to joinType. Output follows
// left row order, then unmatched right rows in their own order.
func JoinDataSets(left, right *dataset.DataSet, name string, on []JoinKey, joinType JoinType) (*dataset.DataSet, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("join needs at least one key")
	}
	out := &dataset.DataSet{Name: targetName(name, left)}
	var lrows, rrows []dataset.Row
	if left != nil {
		lrows = left.Rows
	}
	if right != nil {
		rrows = right.Rows
	}

	leftFields := make([]string, len(on))
	rightFields := make([]string, len(on))
	for i, k := range on {
		leftFields[i] = k.Left
		rightFields[i] = k.Right
	}

	index := make(map[string][]int, len(rrows))
	for i, row := range rrows {
		k := dataset.KeyOf(row.Tuple(rightFields))
		index[k] = append(index[k], i)
	}

	matched := make([]bool, len(rrows))
	for _, l := range lrows {
		hits := index[dataset.KeyOf(l.Tuple(leftFields))]
		if len(hits) == 0 {
			if joinType == LeftJoin || joinType == FullJoin {
				out.Rows = append(out.Rows, l.Clone())
			}
			continue
		}
		for _, ri := range hits {
			matched[ri] = true
			row := rrows[ri].Clone()
			for k, v := range l {
				row[k] = v
			}
			out.Rows = append(out.Rows, row)
		}
	}

	if joinType == RightJoin || joinType == FullJoin {
		for i, r := range rrows {
			if matched[i] {
				continue
			}
			row := r.Clone()
			for ki, k := range on {
				row[k.Left] = r.Get(rightFields[ki])
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// UnionDataSets returns the rows of a followed by the rows of b. With distinct
// set, rows equal field by field to an earlier row are dropped.
func UnionDataSets(a, b *dataset.DataSet, name string, distinct bool) *dataset.DataSet {
	out := &dataset.DataSet{Name: targetName(name, a)}
	seen := make(map[string]struct{})
	for _, ds := range []*dataset.DataSet{a, b} {
		if ds == nil {
			continue
		}
		for _, row := range ds.Rows {
			if distinct {
				k := rowKey(row)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			out.Rows = append(out.Rows, row.Clone())
		}
	}
	return out
}

// rowKey encodes a whole row, field names included, for equality checks.
func rowKey(row dataset.Row) string {
	fields := make([]string, 0, len(row))
	for k, v := range row {
		if v.IsNull() {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	values := make([]dataset.Value, 0, 2*len(fields))
	for _, f := range fields {
		values = append(values, dataset.String(f), row[f])
	}
	return dataset.KeyOf(values)
}
