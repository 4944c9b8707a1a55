// Package query defines the Domain-Specific Language (DSL) used to read rows
// from a table: filters, sorting, projection and pagination. Source adapters
// translate it into their own dialect.
package query

import (
	"github.com/asaidimu/go-dataopt/core/schema"
)

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd = schema.LogicalAnd
	LogicalOperatorOr  = schema.LogicalOr
	LogicalOperatorNot = schema.LogicalNot
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq          ComparisonOperator = "eq"
	ComparisonOperatorNeq         ComparisonOperator = "neq"
	ComparisonOperatorLt          ComparisonOperator = "lt"
	ComparisonOperatorLte         ComparisonOperator = "lte"
	ComparisonOperatorGt          ComparisonOperator = "gt"
	ComparisonOperatorGte         ComparisonOperator = "gte"
	ComparisonOperatorIn          ComparisonOperator = "in"
	ComparisonOperatorNin         ComparisonOperator = "nin"
	ComparisonOperatorContains    ComparisonOperator = "contains"
	ComparisonOperatorNotContains ComparisonOperator = "ncontains"
	ComparisonOperatorStartsWith  ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith    ComparisonOperator = "endswith"
	ComparisonOperatorExists      ComparisonOperator = "exists"
	ComparisonOperatorNotExists   ComparisonOperator = "nexists"
)

// FilterValue represents the value used in a filter condition.
type FilterValue = any

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             `json:"field"`
	Operator ComparisonOperator `json:"operator"`
	Value    FilterValue        `json:"value,omitempty"`
}

// FilterGroup combines multiple filter conditions using a logical operator.
type FilterGroup struct {
	Operator   schema.LogicalOperator `json:"operator"`
	Conditions []QueryFilter          `json:"conditions"`
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:"condition,omitempty"`
	Group     *FilterGroup     `json:"group,omitempty"`
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction,omitempty"`
}

// PaginationOptions limits the rows returned.
type PaginationOptions struct {
	Limit  int  `json:"limit"`
	Offset *int `json:"offset,omitempty"`
}

// ProjectionConfiguration lists the fields to return; empty means all.
type ProjectionConfiguration struct {
	Include []string `json:"include,omitempty"`
}

// QueryDSL is the top-level structure that represents a complete table read.
type QueryDSL struct {
	Filters    *QueryFilter             `json:"filters,omitempty"`
	Sort       []SortConfiguration      `json:"sort,omitempty"`
	Pagination *PaginationOptions       `json:"pagination,omitempty"`
	Projection *ProjectionConfiguration `json:"projection,omitempty"`
}

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:          {},
	ComparisonOperatorNeq:         {},
	ComparisonOperatorLt:          {},
	ComparisonOperatorLte:         {},
	ComparisonOperatorGt:          {},
	ComparisonOperatorGte:         {},
	ComparisonOperatorIn:          {},
	ComparisonOperatorNin:         {},
	ComparisonOperatorContains:    {},
	ComparisonOperatorNotContains: {},
	ComparisonOperatorStartsWith:  {},
	ComparisonOperatorEndsWith:    {},
	ComparisonOperatorExists:      {},
	ComparisonOperatorNotExists:   {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// GetStandardComparisonOperators returns a map of all standard comparison operators.
func GetStandardComparisonOperators() map[ComparisonOperator]struct{} {
	return standardComparisonOperators
}

// Bind returns a copy of the filter tree in which every string value of the
// form ":name" is replaced by params[name]. Names missing from params bind to nil.
func (f *QueryFilter) Bind(params map[string]any) *QueryFilter {
	if f == nil {
		return nil
	}
	out := &QueryFilter{}
	if f.Condition != nil {
		cond := *f.Condition
		cond.Value = bindValue(cond.Value, params)
		out.Condition = &cond
	}
	if f.Group != nil {
		group := &FilterGroup{Operator: f.Group.Operator}
		for _, c := range f.Group.Conditions {
			group.Conditions = append(group.Conditions, *c.Bind(params))
		}
		out.Group = group
	}
	return out
}

func bindValue(v FilterValue, params map[string]any) FilterValue {
	switch val := v.(type) {
	case string:
		if len(val) > 1 && val[0] == ':' {
			return params[val[1:]]
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = bindValue(item, params)
		}
		return out
	default:
		return v
	}
}
