package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-dataopt/core/schema"
)

// QueryBuilder provides a fluent API for building QueryDSL structures.
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: QueryDSL{},
	}
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// Clone creates a deep copy of the current query builder, so derived queries
// never modify the original.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	return &QueryBuilder{query: qb.query.Clone()}
}

// Reset clears all configurations from the query builder.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// Clone returns a deep copy of the query.
func (q QueryDSL) Clone() QueryDSL {
	out := QueryDSL{Filters: q.Filters.clone()}
	if q.Sort != nil {
		out.Sort = append([]SortConfiguration(nil), q.Sort...)
	}
	if q.Pagination != nil {
		p := *q.Pagination
		if p.Offset != nil {
			p.Offset = IntPtr(*p.Offset)
		}
		out.Pagination = &p
	}
	if q.Projection != nil {
		out.Projection = &ProjectionConfiguration{
			Include: append([]string(nil), q.Projection.Include...),
		}
	}
	return out
}

func (f *QueryFilter) clone() *QueryFilter {
	if f == nil {
		return nil
	}
	out := &QueryFilter{}
	if f.Condition != nil {
		c := *f.Condition
		if values, ok := c.Value.([]FilterValue); ok {
			c.Value = append([]FilterValue(nil), values...)
		}
		out.Condition = &c
	}
	if f.Group != nil {
		g := &FilterGroup{Operator: f.Group.Operator}
		for _, c := range f.Group.Conditions {
			g.Conditions = append(g.Conditions, *c.clone())
		}
		out.Group = g
	}
	return out
}

// addFilter merges a filter into the query; a second filter is ANDed with the first.
func (qb *QueryBuilder) addFilter(filter QueryFilter) *QueryBuilder {
	switch {
	case qb.query.Filters == nil:
		qb.query.Filters = &filter
	case qb.query.Filters.Group != nil && qb.query.Filters.Group.Operator == LogicalOperatorAnd:
		qb.query.Filters.Group.Conditions = append(qb.query.Filters.Group.Conditions, filter)
	default:
		group := CreateFilterGroup(LogicalOperatorAnd, *qb.query.Filters, filter)
		qb.query.Filters = &group
	}
	return qb
}

// Where begins the construction of a filter condition for a specific field.
func (qb *QueryBuilder) Where(field string) *ConditionBuilder[*QueryBuilder] {
	return &ConditionBuilder[*QueryBuilder]{
		field: field,
		done: func(f QueryFilter) *QueryBuilder {
			return qb.addFilter(f)
		},
	}
}

// WhereGroup begins the construction of a group of filter conditions, combined
// with a logical operator.
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		operator: operator,
		end: func(f QueryFilter) {
			qb.addFilter(f)
		},
		parent: qb,
	}
}

// ConditionBuilder builds a single filter condition and hands it back to the
// builder that created it.
type ConditionBuilder[P any] struct {
	field string
	done  func(QueryFilter) P
}

func (cb *ConditionBuilder[P]) add(operator ComparisonOperator, value FilterValue) P {
	return cb.done(CreateSimpleFilter(cb.field, operator, value))
}

// Eq adds an equality condition.
func (cb *ConditionBuilder[P]) Eq(value FilterValue) P { return cb.add(ComparisonOperatorEq, value) }

// Neq adds a not-equal condition.
func (cb *ConditionBuilder[P]) Neq(value FilterValue) P { return cb.add(ComparisonOperatorNeq, value) }

// Lt adds a less-than condition.
func (cb *ConditionBuilder[P]) Lt(value FilterValue) P { return cb.add(ComparisonOperatorLt, value) }

// Lte adds a less-than-or-equal condition.
func (cb *ConditionBuilder[P]) Lte(value FilterValue) P { return cb.add(ComparisonOperatorLte, value) }

// Gt adds a greater-than condition.
func (cb *ConditionBuilder[P]) Gt(value FilterValue) P { return cb.add(ComparisonOperatorGt, value) }

// Gte adds a greater-than-or-equal condition.
func (cb *ConditionBuilder[P]) Gte(value FilterValue) P { return cb.add(ComparisonOperatorGte, value) }

// In checks that the field's value is within a set of values.
func (cb *ConditionBuilder[P]) In(values ...FilterValue) P {
	return cb.add(ComparisonOperatorIn, values)
}

// Nin checks that the field's value is not within a set of values.
func (cb *ConditionBuilder[P]) Nin(values ...FilterValue) P {
	return cb.add(ComparisonOperatorNin, values)
}

// Contains checks that a string field contains a substring.
func (cb *ConditionBuilder[P]) Contains(value FilterValue) P {
	return cb.add(ComparisonOperatorContains, value)
}

// NotContains checks that a string field does not contain a substring.
func (cb *ConditionBuilder[P]) NotContains(value FilterValue) P {
	return cb.add(ComparisonOperatorNotContains, value)
}

// StartsWith checks that a string field starts with a prefix.
func (cb *ConditionBuilder[P]) StartsWith(value FilterValue) P {
	return cb.add(ComparisonOperatorStartsWith, value)
}

// EndsWith checks that a string field ends with a suffix.
func (cb *ConditionBuilder[P]) EndsWith(value FilterValue) P {
	return cb.add(ComparisonOperatorEndsWith, value)
}

// Exists checks that a field is not null.
func (cb *ConditionBuilder[P]) Exists() P { return cb.add(ComparisonOperatorExists, nil) }

// NotExists checks that a field is null.
func (cb *ConditionBuilder[P]) NotExists() P { return cb.add(ComparisonOperatorNotExists, nil) }

// FilterGroupBuilder collects conditions combined with one logical operator.
type FilterGroupBuilder struct {
	operator   schema.LogicalOperator
	conditions []QueryFilter
	end        func(QueryFilter)
	parent     *QueryBuilder
	outer      *FilterGroupBuilder
}

// Where adds a condition to the group.
func (fgb *FilterGroupBuilder) Where(field string) *ConditionBuilder[*FilterGroupBuilder] {
	return &ConditionBuilder[*FilterGroupBuilder]{
		field: field,
		done: func(f QueryFilter) *FilterGroupBuilder {
			fgb.conditions = append(fgb.conditions, f)
			return fgb
		},
	}
}

// WhereGroup opens a nested group. Its End returns to this group.
func (fgb *FilterGroupBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		operator: operator,
		end: func(f QueryFilter) {
			fgb.conditions = append(fgb.conditions, f)
		},
		parent: fgb.parent,
		outer:  fgb,
	}
}

// End closes the group. For a nested group it returns nil; use EndGroup to
// continue with the enclosing group.
func (fgb *FilterGroupBuilder) End() *QueryBuilder {
	fgb.end(CreateFilterGroup(fgb.operator, fgb.conditions...))
	return fgb.parent
}

// EndGroup closes a nested group and returns the enclosing one.
func (fgb *FilterGroupBuilder) EndGroup() *FilterGroupBuilder {
	fgb.end(CreateFilterGroup(fgb.operator, fgb.conditions...))
	return fgb.outer
}

// OrderBy adds a sorting configuration to the query.
func (qb *QueryBuilder) OrderBy(field string, direction SortDirection) *QueryBuilder {
	qb.query.Sort = append(qb.query.Sort, SortConfiguration{
		Field:     field,
		Direction: direction,
	})
	return qb
}

// OrderByAsc is a shortcut for sorting by a field in ascending order.
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc is a shortcut for sorting by a field in descending order.
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionDesc)
}

// Limit sets the maximum number of rows to return.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Limit = limit
	return qb
}

// Offset sets the number of rows to skip.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Offset = IntPtr(offset)
	return qb
}

// Select restricts the returned fields.
func (qb *QueryBuilder) Select(fields ...string) *QueryBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	qb.query.Projection.Include = append(qb.query.Projection.Include, fields...)
	return qb
}

// QueryValidationError represents an error found during query validation.
type QueryValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for a QueryValidationError.
func (ve QueryValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// QueryValidationResult contains the results of a query validation.
type QueryValidationResult struct {
	IsValid bool
	Errors  []QueryValidationError
}

// Validate checks the built query for invalid pagination and empty fields.
func (qb *QueryBuilder) Validate() QueryValidationResult {
	return qb.query.Validate()
}

// Validate checks the query for invalid pagination and empty fields.
func (q QueryDSL) Validate() QueryValidationResult {
	var errors []QueryValidationError

	if q.Pagination != nil {
		if q.Pagination.Limit < 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.limit",
				Message: "limit cannot be negative",
			})
		}
		if q.Pagination.Offset != nil && *q.Pagination.Offset < 0 {
			errors = append(errors, QueryValidationError{
				Field:   "pagination.offset",
				Message: "offset cannot be negative",
			})
		}
	}

	for i, s := range q.Sort {
		if s.Field == "" {
			errors = append(errors, QueryValidationError{
				Field:   fmt.Sprintf("sort[%d].field", i),
				Message: "field cannot be empty",
			})
		}
	}

	errors = append(errors, validateFilter("filters", q.Filters)...)

	return QueryValidationResult{
		IsValid: len(errors) == 0,
		Errors:  errors,
	}
}

func validateFilter(path string, f *QueryFilter) []QueryValidationError {
	if f == nil {
		return nil
	}
	var errors []QueryValidationError
	if f.Condition != nil {
		if f.Condition.Field == "" {
			errors = append(errors, QueryValidationError{Field: path + ".field", Message: "field cannot be empty"})
		}
		if !f.Condition.Operator.IsStandard() {
			errors = append(errors, QueryValidationError{
				Field:   path + ".operator",
				Message: fmt.Sprintf("unsupported operator %q", f.Condition.Operator),
			})
		}
	}
	if f.Group != nil {
		for i := range f.Group.Conditions {
			errors = append(errors, validateFilter(fmt.Sprintf("%s.conditions[%d]", path, i), &f.Group.Conditions[i])...)
		}
	}
	return errors
}

// String returns a human-readable representation of the built query.
func (qb *QueryBuilder) String() string {
	var parts []string

	if qb.query.Filters != nil {
		parts = append(parts, "FILTERS: present")
	}

	if len(qb.query.Sort) > 0 {
		sortFields := make([]string, len(qb.query.Sort))
		for i, sort := range qb.query.Sort {
			sortFields[i] = fmt.Sprintf("%s %s", sort.Field, sort.Direction)
		}
		parts = append(parts, fmt.Sprintf("ORDER BY: %s", strings.Join(sortFields, ", ")))
	}

	if qb.query.Pagination != nil {
		parts = append(parts, fmt.Sprintf("LIMIT: %d", qb.query.Pagination.Limit))
		if qb.query.Pagination.Offset != nil {
			parts = append(parts, fmt.Sprintf("OFFSET: %d", *qb.query.Pagination.Offset))
		}
	}

	if qb.query.Projection != nil && len(qb.query.Projection.Include) > 0 {
		parts = append(parts, fmt.Sprintf("SELECT: %s", strings.Join(qb.query.Projection.Include, ", ")))
	}

	if len(parts) == 0 {
		return "EMPTY QUERY"
	}

	return strings.Join(parts, " | ")
}

// CreateSimpleFilter is a helper function to create a simple filter condition.
func CreateSimpleFilter(field string, operator ComparisonOperator, value FilterValue) QueryFilter {
	return QueryFilter{
		Condition: &FilterCondition{
			Field:    field,
			Operator: operator,
			Value:    value,
		},
	}
}

// CreateFilterGroup is a helper function to create a filter group.
func CreateFilterGroup(operator schema.LogicalOperator, conditions ...QueryFilter) QueryFilter {
	return QueryFilter{
		Group: &FilterGroup{
			Operator:   operator,
			Conditions: conditions,
		},
	}
}
