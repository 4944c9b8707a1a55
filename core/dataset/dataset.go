package dataset

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
)

// DefaultName is used for datasets and models created without an explicit name.
const DefaultName = "default"

// Row is a single record: field name to scalar value. Rows of one DataSet usually
// share a field set but are not required to.
type Row map[string]Value

// Get returns the value of field, or Null when the field is absent.
func (r Row) Get(field string) Value {
	if r == nil {
		return Null()
	}
	return r[field]
}

// Lookup returns the value of field and whether it was present.
func (r Row) Lookup(field string) (Value, bool) {
	v, ok := r[field]
	return v, ok
}

// Clone returns a shallow copy of the row. Values are immutable so this is a
// full copy in practice.
func (r Row) Clone() Row {
	if r == nil {
		return Row{}
	}
	return maps.Clone(r)
}

// Tuple extracts the values of fields in order.
func (r Row) Tuple(fields []string) []Value {
	out := make([]Value, len(fields))
	for i, f := range fields {
		out[i] = r.Get(f)
	}
	return out
}

// Document converts the row to a plain map for encoding or database writes.
func (r Row) Document() map[string]any {
	doc := make(map[string]any, len(r))
	for k, v := range r {
		doc[k] = v.Any()
	}
	return doc
}

// RowFromMap converts a plain map, such as a decoded JSON object, into a Row.
func RowFromMap(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = FromAny(v)
	}
	return row
}

// DataSet is a named, optionally ordered table of rows. A DataSet is treated as
// immutable once produced: operators read it and build new datasets.
type DataSet struct {
	Name       string   `json:"dataSetName"`
	Dimensions []string `json:"dimensions,omitempty"`
	Sorted     bool     `json:"sorted,omitempty"`
	Rows       []Row    `json:"data"`
}

// New creates a dataset holding rows.
func New(name string, rows []Row) *DataSet {
	if name == "" {
		name = DefaultName
	}
	return &DataSet{Name: name, Rows: rows}
}

// FromMaps builds a dataset from plain maps.
func FromMaps(name string, records []map[string]any) *DataSet {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, RowFromMap(rec))
	}
	return New(name, rows)
}

// IsEmpty reports whether the dataset holds no rows. A nil dataset is empty.
func (d *DataSet) IsEmpty() bool {
	return d == nil || len(d.Rows) == 0
}

// RowCount returns the number of rows.
func (d *DataSet) RowCount() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// FirstRow returns the first row; ok is false for an empty dataset.
func (d *DataSet) FirstRow() (Row, bool) {
	if d.IsEmpty() {
		return nil, false
	}
	return d.Rows[0], true
}

// Fields returns the sorted union of field names across all rows.
func (d *DataSet) Fields() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, row := range d.Rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a deep copy of the dataset under a possibly new name. An empty
// name keeps the current one.
func (d *DataSet) Clone(name string) *DataSet {
	if d == nil {
		return nil
	}
	if name == "" {
		name = d.Name
	}
	rows := make([]Row, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = r.Clone()
	}
	return &DataSet{
		Name:       name,
		Dimensions: slices.Clone(d.Dimensions),
		Sorted:     d.Sorted,
		Rows:       rows,
	}
}

// Documents converts every row to a plain map.
func (d *DataSet) Documents() []map[string]any {
	if d == nil {
		return nil
	}
	docs := make([]map[string]any, len(d.Rows))
	for i, r := range d.Rows {
		docs[i] = r.Document()
	}
	return docs
}

// UnmarshalJSON accepts either the full form {"dataSetName":..,"data":[..]} or a
// bare array of objects.
func (d *DataSet) UnmarshalJSON(data []byte) error {
	var rows []Row
	if err := json.Unmarshal(data, &rows); err == nil {
		d.Rows = rows
		if d.Name == "" {
			d.Name = DefaultName
		}
		return nil
	}
	type plain DataSet
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	*d = DataSet(p)
	if d.Name == "" {
		d.Name = DefaultName
	}
	return nil
}
