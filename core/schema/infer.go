package schema

import (
	"math"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// InferSchema derives a table schema from the rows of ds. Each field takes the
// narrowest type that fits every non-null value; fields mixing kinds, or holding
// only nulls, are strings. primaryKey, when given, becomes the primary index and
// its fields are marked required.
func InferSchema(ds *dataset.DataSet, name string, primaryKey []string) *SchemaDefinition {
	if name == "" && ds != nil {
		name = ds.Name
	}
	sc := &SchemaDefinition{
		Name:    name,
		Version: "1",
		Fields:  make(map[string]*FieldDefinition),
	}
	if ds != nil {
		for _, field := range ds.Fields() {
			sc.Fields[field] = &FieldDefinition{Name: field, Type: inferFieldType(ds.Rows, field)}
		}
	}
	if len(primaryKey) > 0 {
		for _, f := range primaryKey {
			def, ok := sc.Fields[f]
			if !ok {
				def = &FieldDefinition{Name: f, Type: FieldTypeString}
				sc.Fields[f] = def
			}
			def.Required = BoolPtr(true)
		}
		sc.Indexes = append(sc.Indexes, IndexDefinition{
			Name:   "pk_" + name,
			Fields: primaryKey,
			Type:   IndexTypePrimary,
		})
	}
	return sc
}

func inferFieldType(rows []dataset.Row, field string) FieldType {
	var kind dataset.Kind
	integral := true
	for _, row := range rows {
		v := row.Get(field)
		if v.IsNull() {
			continue
		}
		switch {
		case kind == dataset.KindNull:
			kind = v.Kind()
		case kind != v.Kind():
			return FieldTypeString
		}
		if f, ok := v.AsNumber(); ok && v.Kind() == dataset.KindNumber && f != math.Trunc(f) {
			integral = false
		}
	}
	switch kind {
	case dataset.KindNumber:
		if integral {
			return FieldTypeInteger
		}
		return FieldTypeNumber
	case dataset.KindBool:
		return FieldTypeBoolean
	case dataset.KindDate:
		return FieldTypeDateTime
	default:
		return FieldTypeString
	}
}

// ToValue converts a column value read from a database into a dataset value,
// using the declared field type to restore booleans and dates.
func (f *FieldDefinition) ToValue(raw any) dataset.Value {
	v := dataset.FromAny(raw)
	if f == nil || v.IsNull() {
		return v
	}
	switch f.Type {
	case FieldTypeBoolean:
		if n, ok := v.AsNumber(); ok {
			return dataset.Bool(n != 0)
		}
	case FieldTypeDateTime:
		if t, ok := v.AsTime(); ok {
			return dataset.Date(t)
		}
	}
	return v
}
