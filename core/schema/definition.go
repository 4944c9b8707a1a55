// Package schema describes the tables datasets are read from and written to:
// field types, indexes and the primary key. Schemas are usually inferred from
// a DataSet rather than declared by hand.
package schema

import (
	"sort"
)

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
	LogicalNot LogicalOperator = "not" // Negates a condition or group of conditions
)

// FieldType represents the column types a table field can have.
type FieldType string

const (
	FieldTypeString   FieldType = "string"   // Text data
	FieldTypeNumber   FieldType = "number"   // Floating point data
	FieldTypeInteger  FieldType = "integer"  // Whole numbers
	FieldTypeBoolean  FieldType = "boolean"  // True/false values
	FieldTypeDateTime FieldType = "datetime" // Points in time, stored as RFC 3339 text
)

// IndexType represents index types for optimizing different query patterns.
type IndexType string

const (
	IndexTypeNormal  IndexType = "normal"  // General-purpose index
	IndexTypeUnique  IndexType = "unique"  // Unique index
	IndexTypePrimary IndexType = "primary" // Primary key index (implies unique)
)

// FieldDefinition defines a single column.
type FieldDefinition struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    *bool     `json:"required,omitempty"`
	Unique      *bool     `json:"unique,omitempty"`
	Default     any       `json:"default,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// IndexDefinition defines an index for optimizing queries or enforcing uniqueness.
type IndexDefinition struct {
	Name   string    `json:"name"`
	Fields []string  `json:"fields"`
	Type   IndexType `json:"type"`
	Unique *bool     `json:"unique,omitempty"`
	Order  *string   `json:"order,omitempty"` // "asc" | "desc"
}

// SchemaDefinition describes one table.
type SchemaDefinition struct {
	Name        string                      `json:"name"`
	Version     string                      `json:"version"`
	Description *string                     `json:"description,omitempty"`
	Fields      map[string]*FieldDefinition `json:"fields"`
	Indexes     []IndexDefinition           `json:"indexes,omitempty"`
	Metadata    map[string]any              `json:"metadata,omitempty"`
}

// Document is a row as exchanged with a database driver.
type Document map[string]any

// FindField returns the field called name, or nil.
func (s *SchemaDefinition) FindField(name string) *FieldDefinition {
	if f, ok := s.Fields[name]; ok {
		return f
	}
	for _, field := range s.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// FieldNames returns the field names in sorted order, giving generated SQL a
// stable column order.
func (s *SchemaDefinition) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrimaryKey returns the fields of the primary index, if any.
func (s *SchemaDefinition) PrimaryKey() []string {
	for _, index := range s.Indexes {
		if index.Type == IndexTypePrimary && len(index.Fields) > 0 {
			return index.Fields
		}
	}
	return nil
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
