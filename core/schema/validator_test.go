package schema

import (
	"testing"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersSchema() *SchemaDefinition {
	return &SchemaDefinition{
		Name: "orders",
		Fields: map[string]*FieldDefinition{
			"id":    {Name: "id", Type: FieldTypeInteger, Required: BoolPtr(true)},
			"price": {Name: "price", Type: FieldTypeNumber},
			"paid":  {Name: "paid", Type: FieldTypeBoolean},
			"at":    {Name: "at", Type: FieldTypeDateTime},
			"note":  {Name: "note", Type: FieldTypeString},
		},
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(ordersSchema())
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		row   dataset.Row
		loose bool
		codes []string
		paths []string
	}{
		{
			name: "valid",
			row: dataset.Row{
				"id": dataset.Number(1), "price": dataset.Number(2.5), "paid": dataset.Bool(true),
				"at": dataset.Date(at), "note": dataset.Number(7),
			},
		},
		{
			name: "coerced text",
			row: dataset.Row{
				"id": dataset.String("4"), "price": dataset.String("1.25"), "paid": dataset.String("FALSE"),
				"at": dataset.String("2024-05-01T12:00:00Z"), "note": dataset.String("null"),
			},
		},
		{
			name:  "missing required",
			row:   dataset.Row{"price": dataset.Number(1)},
			codes: []string{IssueRequiredFieldMissing},
			paths: []string{"id"},
		},
		{
			name:  "missing required loose",
			row:   dataset.Row{"price": dataset.Number(1)},
			loose: true,
		},
		{
			name:  "null required",
			row:   dataset.Row{"id": dataset.Null()},
			loose: true,
			codes: []string{IssueNullValue},
			paths: []string{"id"},
		},
		{
			name:  "type mismatches",
			row:   dataset.Row{"id": dataset.Number(1.5), "paid": dataset.String("yes"), "at": dataset.Number(3)},
			codes: []string{IssueTypeMismatch, IssueTypeMismatch, IssueTypeMismatch},
			paths: []string{"at", "id", "paid"},
		},
		{
			name:  "unexpected fields",
			row:   dataset.Row{"id": dataset.Number(1), "zeta": dataset.Null(), "alpha": dataset.Number(1)},
			codes: []string{IssueUnexpectedField, IssueUnexpectedField},
			paths: []string{"alpha", "zeta"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, issues := v.Validate(tt.row, tt.loose)
			assert.Equal(t, len(tt.codes) == 0, ok)
			var codes, paths []string
			for _, issue := range issues {
				codes = append(codes, issue.Code)
				paths = append(paths, issue.Path)
				assert.Equal(t, "error", issue.Severity)
			}
			assert.Equal(t, tt.codes, codes)
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestValidator_ValidateDataSet(t *testing.T) {
	v := NewValidator(ordersSchema())
	ds := dataset.New("orders", []dataset.Row{
		{"id": dataset.Number(1)},
		{"id": dataset.Number(2), "price": dataset.String("cheap")},
	})

	ok, issues := v.ValidateDataSet(ds, false)
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "rows[1].price", issues[0].Path)
	assert.Equal(t, "Expected number, got string", issues[0].Message)

	ok, issues = v.ValidateDataSet(nil, false)
	assert.True(t, ok)
	assert.Empty(t, issues)
}
