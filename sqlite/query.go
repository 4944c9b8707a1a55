package sqlite

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
)

// SqliteQueryGeneratorFactory implements the QueryGeneratorFactory for SQLite.
type SqliteQueryGeneratorFactory struct{}

// NewSqliteQueryGeneratorFactory creates a new instance of SqliteQueryGeneratorFactory.
func NewSqliteQueryGeneratorFactory() *SqliteQueryGeneratorFactory {
	return &SqliteQueryGeneratorFactory{}
}

// CreateGenerator creates a new SqliteQuery for the given schema.
func (f *SqliteQueryGeneratorFactory) CreateGenerator(schema *schema.SchemaDefinition) (query.QueryGenerator, error) {
	return NewSqliteQuery(schema)
}

// SqliteQuery is a schema-aware query generator for SQLite. Every field a
// query references must be declared by the schema.
type SqliteQuery struct {
	schema *schema.SchemaDefinition
}

// NewSqliteQuery creates a new schema-aware query generator for SQLite.
func NewSqliteQuery(schema *schema.SchemaDefinition) (*SqliteQuery, error) {
	if schema == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if schema.Name == "" {
		return nil, fmt.Errorf("schema must define a table name")
	}
	return &SqliteQuery{schema: schema}, nil
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getFieldSQL returns the quoted column for field.
func (s *SqliteQuery) getFieldSQL(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("field name cannot be empty")
	}
	if _, ok := s.schema.Fields[field]; !ok {
		return "", fmt.Errorf("field '%s' not found in schema", field)
	}
	return quoteIdentifier(field), nil
}

// prepareValueForQuery converts a Go value into the storage form of the
// field's type: booleans become 0/1 and times RFC 3339 text.
func (s *SqliteQuery) prepareValueForQuery(fieldName string, value any) (any, error) {
	field, exists := s.schema.Fields[fieldName]
	if !exists {
		return nil, fmt.Errorf("field '%s' not found in schema for value preparation", fieldName)
	}
	if value == nil {
		return nil, nil
	}

	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339Nano), nil
	}

	switch field.Type {
	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "1":
				return 1, nil
			case "false", "0":
				return 0, nil
			}
		case int:
			return v, nil
		case int64:
			return v, nil
		case float64:
			if v == 1 {
				return 1, nil
			}
			if v == 0 {
				return 0, nil
			}
		}
		return nil, fmt.Errorf("expected boolean for FieldTypeBoolean, got %T for field '%s'", value, fieldName)
	default:
		return value, nil
	}
}

// GenerateSelectSQL creates a SELECT statement and its parameters from dsl.
func (s *SqliteQuery) GenerateSelectSQL(dsl *query.QueryDSL) (string, []any, error) {
	if dsl == nil {
		return "", nil, fmt.Errorf("QueryDSL cannot be nil")
	}
	quotedTableName := quoteIdentifier(s.schema.Name)

	var selectFields, orderByClauses []string
	var queryParams []any
	var whereSQL string
	limit, offset := -1, 0

	if dsl.Projection != nil && len(dsl.Projection.Include) > 0 {
		for _, field := range dsl.Projection.Include {
			accessor, err := s.getFieldSQL(field)
			if err != nil {
				return "", nil, fmt.Errorf("projection error: %w", err)
			}
			selectFields = append(selectFields, accessor)
		}
	} else {
		selectFields = append(selectFields, "*")
	}

	if dsl.Filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(dsl.Filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
	}

	for _, sortCfg := range dsl.Sort {
		accessor, err := s.getFieldSQL(sortCfg.Field)
		if err != nil {
			return "", nil, fmt.Errorf("sort error: %w", err)
		}
		dir := "ASC"
		if sortCfg.Direction == query.SortDirectionDesc {
			dir = "DESC"
		}
		orderByClauses = append(orderByClauses, accessor+" "+dir)
	}

	if dsl.Pagination != nil {
		if dsl.Pagination.Limit > 0 {
			limit = dsl.Pagination.Limit
		}
		if dsl.Pagination.Offset != nil {
			offset = *dsl.Pagination.Offset
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectFields, ", "), quotedTableName))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	if len(orderByClauses) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(orderByClauses, ", "))
	}
	if limit > -1 || offset > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	if offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", offset))
	}

	return sb.String() + ";", queryParams, nil
}

// buildWhereClause recursively builds the WHERE clause of filter.
func (s *SqliteQuery) buildWhereClause(filter *query.QueryFilter, params *[]any) (string, error) {
	if filter.Condition != nil {
		return s.buildCondition(filter.Condition, params)
	}
	if filter.Group != nil {
		if filter.Group.Operator == "" {
			return "", fmt.Errorf("logical operator missing in filter group")
		}
		var clauses []string
		for _, cond := range filter.Group.Conditions {
			clause, err := s.buildWhereClause(&cond, params)
			if err != nil {
				return "", err
			}
			if clause != "" {
				clauses = append(clauses, clause)
			}
		}
		if len(clauses) == 0 {
			return "", nil
		}
		if filter.Group.Operator == query.LogicalOperatorNot {
			return fmt.Sprintf("NOT (%s)", strings.Join(clauses, " AND ")), nil
		}
		op := strings.ToUpper(string(filter.Group.Operator))
		return fmt.Sprintf("(%s)", strings.Join(clauses, " "+op+" ")), nil
	}
	return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
}

// buildCondition translates a single condition into SQL.
func (s *SqliteQuery) buildCondition(cond *query.FilterCondition, params *[]any) (string, error) {
	accessor, err := s.getFieldSQL(cond.Field)
	if err != nil {
		return "", err
	}

	if cond.Operator == query.ComparisonOperatorIn || cond.Operator == query.ComparisonOperatorNin {
		vals, ok := cond.Value.([]any)
		if !ok && cond.Value != nil {
			vals = []any{cond.Value}
		}
		if len(vals) == 0 {
			if cond.Operator == query.ComparisonOperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		for _, v := range vals {
			prepared, err := s.prepareValueForQuery(cond.Field, v)
			if err != nil {
				return "", err
			}
			*params = append(*params, prepared)
		}
		op := "IN"
		if cond.Operator == query.ComparisonOperatorNin {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", accessor, op, strings.Repeat("?,", len(vals)-1)+"?"), nil
	}

	preparedValue, err := s.prepareValueForQuery(cond.Field, cond.Value)
	if err != nil {
		return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
	}

	switch cond.Operator {
	case query.ComparisonOperatorEq:
		if preparedValue == nil {
			return fmt.Sprintf("%s IS NULL", accessor), nil
		}
		*params = append(*params, preparedValue)
		return fmt.Sprintf("%s = ?", accessor), nil
	case query.ComparisonOperatorNeq:
		if preparedValue == nil {
			return fmt.Sprintf("%s IS NOT NULL", accessor), nil
		}
		*params = append(*params, preparedValue)
		return fmt.Sprintf("%s != ?", accessor), nil
	case query.ComparisonOperatorLt:
		*params = append(*params, preparedValue)
		return fmt.Sprintf("%s < ?", accessor), nil
	case query.ComparisonOperatorLte:
		*params = append(*params, preparedValue)
		return fmt.Sprintf("%s <= ?", accessor), nil
	case query.ComparisonOperatorGt:
		*params = append(*params, preparedValue)
		return fmt.Sprintf("%s > ?", accessor), nil
	case query.ComparisonOperatorGte:
		*params = append(*params, preparedValue)
		return fmt.Sprintf("%s >= ?", accessor), nil
	case query.ComparisonOperatorContains:
		*params = append(*params, "%"+fmt.Sprintf("%v", preparedValue)+"%")
		return fmt.Sprintf("%s LIKE ?", accessor), nil
	case query.ComparisonOperatorNotContains:
		*params = append(*params, "%"+fmt.Sprintf("%v", preparedValue)+"%")
		return fmt.Sprintf("%s NOT LIKE ?", accessor), nil
	case query.ComparisonOperatorStartsWith:
		*params = append(*params, fmt.Sprintf("%v", preparedValue)+"%")
		return fmt.Sprintf("%s LIKE ?", accessor), nil
	case query.ComparisonOperatorEndsWith:
		*params = append(*params, "%"+fmt.Sprintf("%v", preparedValue))
		return fmt.Sprintf("%s LIKE ?", accessor), nil
	case query.ComparisonOperatorExists:
		return fmt.Sprintf("%s IS NOT NULL", accessor), nil
	case query.ComparisonOperatorNotExists:
		return fmt.Sprintf("%s IS NULL", accessor), nil
	default:
		return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", cond.Operator)
	}
}

// GenerateUpdateSQL creates an UPDATE statement. SET clauses follow field name order.
func (s *SqliteQuery) GenerateUpdateSQL(updates map[string]any, filters *query.QueryFilter) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields provided for update")
	}
	quotedTableName := quoteIdentifier(s.schema.Name)

	fields := make([]string, 0, len(updates))
	for fieldName := range updates {
		fields = append(fields, fieldName)
	}
	sort.Strings(fields)

	setClauses := make([]string, 0, len(fields))
	var queryParams []any
	for _, fieldName := range fields {
		accessor, err := s.getFieldSQL(fieldName)
		if err != nil {
			return "", nil, fmt.Errorf("update set clause error for field '%s': %w", fieldName, err)
		}
		preparedValue, err := s.prepareValueForQuery(fieldName, updates[fieldName])
		if err != nil {
			return "", nil, fmt.Errorf("error preparing value for field '%s': %w", fieldName, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", accessor))
		queryParams = append(queryParams, preparedValue)
	}

	var whereSQL string
	if filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for update: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("UPDATE %s SET %s", quotedTableName, strings.Join(setClauses, ", ")))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	return sb.String() + ";", queryParams, nil
}

// GenerateInsertSQL creates a multi-row INSERT with a RETURNING * clause
// (SQLite 3.35+). Columns are the sorted union of the record fields.
func (s *SqliteQuery) GenerateInsertSQL(records []map[string]any) (string, []any, error) {
	if len(records) == 0 {
		return "", nil, fmt.Errorf("no records provided for insert")
	}
	quotedTableName := quoteIdentifier(s.schema.Name)

	fieldSet := make(map[string]bool)
	for _, record := range records {
		for fieldName := range record {
			if _, exists := s.schema.Fields[fieldName]; !exists {
				return "", nil, fmt.Errorf("field '%s' not found in schema", fieldName)
			}
			fieldSet[fieldName] = true
		}
	}
	if len(fieldSet) == 0 {
		return "", nil, fmt.Errorf("no valid fields found in records")
	}
	fields := make([]string, 0, len(fieldSet))
	for fieldName := range fieldSet {
		fields = append(fields, fieldName)
	}
	sort.Strings(fields)

	quotedFields := make([]string, len(fields))
	for i, field := range fields {
		quotedFields[i] = quoteIdentifier(field)
	}
	rowPlaceholders := "(" + strings.Repeat("?, ", len(fields)-1) + "?)"

	valuesClauses := make([]string, 0, len(records))
	queryParams := make([]any, 0, len(records)*len(fields))
	for _, record := range records {
		for _, fieldName := range fields {
			preparedValue, err := s.prepareValueForQuery(fieldName, record[fieldName])
			if err != nil {
				return "", nil, fmt.Errorf("error preparing value for field '%s': %w", fieldName, err)
			}
			queryParams = append(queryParams, preparedValue)
		}
		valuesClauses = append(valuesClauses, rowPlaceholders)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *;",
		quotedTableName, strings.Join(quotedFields, ", "), strings.Join(valuesClauses, ", "))
	return sql, queryParams, nil
}

// GenerateDeleteSQL creates a DELETE statement. A nil filter requires unsafeDelete.
func (s *SqliteQuery) GenerateDeleteSQL(filters *query.QueryFilter, unsafeDelete bool) (string, []any, error) {
	quotedTableName := quoteIdentifier(s.schema.Name)
	var queryParams []any

	if filters == nil && !unsafeDelete {
		return "", nil, fmt.Errorf("DELETE without WHERE clause is not allowed for safety. Set unsafeDelete=true to override")
	}

	var whereSQL string
	if filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for delete: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("DELETE FROM %s", quotedTableName))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	return sb.String() + ";", queryParams, nil
}
