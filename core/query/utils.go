package query

import "strings"

// StringPtr is a helper function that returns a pointer to a string.
func StringPtr(s string) *string {
	return &s
}

// IntPtr is a helper function that returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// ParseSort reads "field", "field asc" or "field desc" terms.
func ParseSort(terms ...string) []SortConfiguration {
	var out []SortConfiguration
	for _, term := range terms {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		dir := SortDirectionAsc
		if len(parts) > 1 && strings.EqualFold(parts[1], string(SortDirectionDesc)) {
			dir = SortDirectionDesc
		}
		out = append(out, SortConfiguration{Field: parts[0], Direction: dir})
	}
	return out
}

// KeyFilter matches the row whose fields equal values pairwise.
func KeyFilter(fields []string, values []any) *QueryFilter {
	if len(fields) == 1 {
		f := CreateSimpleFilter(fields[0], ComparisonOperatorEq, values[0])
		return &f
	}
	conditions := make([]QueryFilter, len(fields))
	for i, field := range fields {
		conditions[i] = CreateSimpleFilter(field, ComparisonOperatorEq, values[i])
	}
	f := CreateFilterGroup(LogicalOperatorAnd, conditions...)
	return &f
}
