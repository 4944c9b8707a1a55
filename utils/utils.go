// Package utils holds conversion helpers shared by the pipeline packages:
// struct to map round trips and lenient list decoding for step parameters.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// StructToMap converts a struct, or a pointer to one, into a map[string]any by
// way of its JSON form. Field names follow the json tags; nested structs
// become nested maps.
//
// Example:
//
//	type Params struct {
//		FieldsMap map[string]string `json:"fieldsMap"`
//		Limit     int               `json:"limit,omitempty"`
//	}
//	m, err := StructToMap(Params{FieldsMap: map[string]string{"total": "a + b"}})
//	// m == map[string]any{"fieldsMap": map[string]any{"total": "a + b"}}
func StructToMap[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("StructToMap: input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("StructToMap: input record cannot be a nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("StructToMap: input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: failed to marshal input record to JSON: %w", err)
	}
	result := map[string]any{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil, fmt.Errorf("StructToMap: failed to unmarshal JSON to map: %w", err)
	}
	return result, nil
}

// MapToStruct is the inverse of StructToMap: it decodes input into a new T,
// which must be a struct or a pointer to one. A nil map yields the zero T.
//
// Example:
//
//	p, err := MapToStruct[Params](map[string]any{"limit": 5})
//	// p.Limit == 5
func MapToStruct[T any](input map[string]any) (T, error) {
	var zero T

	typ := reflect.TypeOf(zero)
	if typ == nil {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}
	if input == nil {
		input = map[string]any{}
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to marshal input map to JSON: %w", err)
	}
	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}

// StringList decodes from a JSON array of strings or from one comma separated
// string. Blank items are dropped and the rest trimmed.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	list, err := ToStringList(raw)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

// ToStringList converts nil, a comma separated string, []string or []any of
// scalars into a StringList.
func ToStringList(v any) (StringList, error) {
	var items []string
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			switch item.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("list items must be scalars, got %T", item)
			}
			items = append(items, fmt.Sprint(item))
		}
	default:
		return nil, fmt.Errorf("expected a list or a comma separated string, got %T", v)
	}
	var out StringList
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}
