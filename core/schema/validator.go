package schema

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

// Issue codes reported by the Validator.
const (
	IssueRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	IssueNullValue            = "NULL_VALUE"
	IssueTypeMismatch         = "TYPE_MISMATCH"
	IssueUnexpectedField      = "UNEXPECTED_FIELD"
)

// Issue represents a validation or operational issue.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}

// Validator checks rows against a table schema before they are written.
// A Validator is safe to reuse; each call collects its own issues.
type Validator struct {
	schema *SchemaDefinition
}

// NewValidator creates a validator for sc.
func NewValidator(sc *SchemaDefinition) *Validator {
	return &Validator{schema: sc}
}

// Validate checks one row. With loose set, missing required fields are not
// reported, which is what partial updates need.
func (v *Validator) Validate(row dataset.Row, loose bool) (bool, []Issue) {
	issues := v.validateRow(row, "", loose)
	return len(issues) == 0, issues
}

// ValidateDataSet checks every row of ds. Issue paths are prefixed with the
// row position, as in "rows[2].amount".
func (v *Validator) ValidateDataSet(ds *dataset.DataSet, loose bool) (bool, []Issue) {
	if ds == nil {
		return true, nil
	}
	var issues []Issue
	for i, row := range ds.Rows {
		issues = append(issues, v.validateRow(row, fmt.Sprintf("rows[%d]", i), loose)...)
	}
	return len(issues) == 0, issues
}

func (v *Validator) validateRow(row dataset.Row, path string, loose bool) []Issue {
	var issues []Issue
	for _, name := range v.schema.FieldNames() {
		def := v.schema.Fields[name]
		fieldPath := buildPath(path, name)
		value, exists := row.Lookup(name)
		required := def.Required != nil && *def.Required
		if !exists {
			if required && !loose {
				issues = append(issues, newIssue(IssueRequiredFieldMissing,
					fmt.Sprintf("Required field '%s' is missing", name), fieldPath))
			}
			continue
		}
		if issue, ok := checkValue(value, def, fieldPath); !ok {
			issues = append(issues, issue)
		}
	}

	fields := make([]string, 0, len(row))
	for k := range row {
		if v.schema.FindField(k) == nil {
			fields = append(fields, k)
		}
	}
	slices.Sort(fields)
	for _, k := range fields {
		issues = append(issues, newIssue(IssueUnexpectedField,
			fmt.Sprintf("Unexpected field '%s' not defined in schema", k), buildPath(path, k)))
	}
	return issues
}

func checkValue(value dataset.Value, def *FieldDefinition, path string) (Issue, bool) {
	value = coerceValue(value, def.Type)
	if value.IsNull() {
		if def.Required != nil && *def.Required {
			return newIssue(IssueNullValue, "Field cannot be null", path), false
		}
		return Issue{}, true
	}

	var ok bool
	switch def.Type {
	case FieldTypeNumber:
		ok = value.Kind() == dataset.KindNumber
	case FieldTypeInteger:
		f, isNum := value.AsNumber()
		ok = value.Kind() == dataset.KindNumber && isNum && f == math.Trunc(f)
	case FieldTypeBoolean:
		ok = value.Kind() == dataset.KindBool
	case FieldTypeDateTime:
		ok = value.Kind() == dataset.KindDate
	default:
		// Text columns store the canonical text of any value.
		ok = true
	}
	if !ok {
		return newIssue(IssueTypeMismatch,
			fmt.Sprintf("Expected %s, got %s", def.Type, value.Kind()), path), false
	}
	return Issue{}, true
}

// coerceValue converts string values to the expected type when they hold a
// valid representation of it. Anything else is returned unchanged.
func coerceValue(value dataset.Value, expected FieldType) dataset.Value {
	if value.Kind() != dataset.KindString {
		return value
	}
	str := strings.TrimSpace(value.AsString())
	if strings.EqualFold(str, "null") {
		return dataset.Null()
	}

	switch expected {
	case FieldTypeBoolean:
		switch strings.ToLower(str) {
		case "true":
			return dataset.Bool(true)
		case "false":
			return dataset.Bool(false)
		}
	case FieldTypeInteger:
		if i, err := strconv.ParseInt(str, 10, 64); err == nil && strconv.FormatInt(i, 10) == str {
			return dataset.Number(float64(i))
		}
	case FieldTypeNumber:
		if f, ok := value.AsNumber(); ok {
			return dataset.Number(f)
		}
	case FieldTypeDateTime:
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			return dataset.Date(t)
		}
	}
	return value
}

func newIssue(code, message, path string) Issue {
	return Issue{Code: code, Message: message, Path: path, Severity: "error"}
}

func buildPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
