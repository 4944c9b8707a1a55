package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/core/schema"
)

// DefaultInteractorOptions returns the options used when none are given.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists:   true,
		CreateIndexes: true,
	}
}

func (s *SQLiteInteractor) quoteIdentifier(name string) string {
	return quoteIdentifier(name)
}

// getTableName returns the quoted table name with the configured prefix.
func (s *SQLiteInteractor) getTableName(baseName string) string {
	return s.quoteIdentifier(s.options.TablePrefix + baseName)
}

// CreateCollection creates the table of sc and, when enabled, its secondary
// indexes.
func (s *SQLiteInteractor) CreateCollection(sc schema.SchemaDefinition) error {
	if len(sc.Fields) == 0 {
		return fmt.Errorf("table %s has no fields", sc.Name)
	}
	if s.options.DropIfExists {
		if err := s.DropCollection(sc.Name); err != nil {
			return err
		}
	}

	stmt, err := s.CreateTableSQL(sc)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for table %s: %w", sc.Name, err)
	}
	if _, err := s.runner().Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
	}

	if s.options.CreateIndexes {
		fullTableName := s.getTableName(sc.Name)
		for _, index := range sc.Indexes {
			sqlIndex := s.CreateIndexSQL(fullTableName, index)
			if sqlIndex == "" {
				continue
			}
			if _, err := s.runner().Exec(sqlIndex); err != nil {
				return fmt.Errorf("failed to create index %s: %w", index.Name, err)
			}
		}
	}
	return nil
}

// CreateTableSQL generates the CREATE TABLE statement for sc. Columns follow
// field name order.
func (s *SQLiteInteractor) CreateTableSQL(sc schema.SchemaDefinition) (string, error) {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(s.getTableName(sc.Name) + " (\n")

	var columns []string
	for _, name := range sc.FieldNames() {
		columnDef, err := s.buildColumnDefinition(name, sc.Fields[name])
		if err != nil {
			return "", fmt.Errorf("error on field '%s': %w", name, err)
		}
		columns = append(columns, "    "+columnDef)
	}
	sb.WriteString(strings.Join(columns, ",\n"))

	if primaryKeys := sc.PrimaryKey(); len(primaryKeys) > 0 {
		quotedPKs := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quotedPKs[i] = s.quoteIdentifier(pk)
		}
		sb.WriteString(",\n    PRIMARY KEY (" + strings.Join(quotedPKs, ", ") + ")")
	}

	sb.WriteString("\n);")
	return sb.String(), nil
}

func (s *SQLiteInteractor) buildColumnDefinition(fieldName string, field *schema.FieldDefinition) (string, error) {
	parts := []string{s.quoteIdentifier(fieldName), s.GetColumnType(field.Type)}

	if field.Required != nil && *field.Required {
		parts = append(parts, "NOT NULL")
	}
	if field.Default != nil {
		defVal, err := s.formatDefaultValue(field.Default, field.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+defVal)
	}
	if field.Unique != nil && *field.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " "), nil
}

// GetColumnType maps a schema.FieldType to its SQLite column type. The
// declared types round-trip through DescribeCollection.
func (s *SQLiteInteractor) GetColumnType(fieldType schema.FieldType) string {
	switch fieldType {
	case schema.FieldTypeNumber:
		return "REAL"
	case schema.FieldTypeInteger:
		return "INTEGER"
	case schema.FieldTypeBoolean:
		return "BOOLEAN"
	case schema.FieldTypeDateTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// fieldTypeOf is the inverse of GetColumnType, following SQLite's affinity
// rules for declared types it did not produce.
func fieldTypeOf(declared string) schema.FieldType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "BOOL"):
		return schema.FieldTypeBoolean
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return schema.FieldTypeDateTime
	case strings.Contains(t, "INT"):
		return schema.FieldTypeInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUM"), strings.Contains(t, "DEC"):
		return schema.FieldTypeNumber
	default:
		return schema.FieldTypeString
	}
}

func (s *SQLiteInteractor) formatDefaultValue(value any, fieldType schema.FieldType) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeDateTime:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(fmt.Sprintf("%v", value), "'", "''")), nil
	case schema.FieldTypeNumber, schema.FieldTypeInteger:
		return fmt.Sprintf("%v", value), nil
	case schema.FieldTypeBoolean:
		if b, ok := value.(bool); ok && b {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("unsupported type for default value: %s", fieldType)
	}
}

// CreateIndexSQL generates the CREATE INDEX statement for index. Primary
// indexes are part of the table definition and yield "".
func (s *SQLiteInteractor) CreateIndexSQL(collection string, index schema.IndexDefinition) string {
	if index.Type == schema.IndexTypePrimary || len(index.Fields) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if (index.Unique != nil && *index.Unique) || index.Type == schema.IndexTypeUnique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX IF NOT EXISTS ")
	indexName := index.Name
	if indexName == "" {
		indexName = fmt.Sprintf("idx_%s_%s", strings.Trim(collection, `"`), strings.Join(index.Fields, "_"))
	}
	sb.WriteString(s.quoteIdentifier(indexName))
	sb.WriteString(fmt.Sprintf(" ON %s (", collection))

	fieldParts := make([]string, len(index.Fields))
	for i, field := range index.Fields {
		part := s.quoteIdentifier(field)
		if index.Order != nil && strings.ToUpper(*index.Order) == "DESC" {
			part += " DESC"
		}
		fieldParts[i] = part
	}
	sb.WriteString(strings.Join(fieldParts, ", ") + ");")
	return sb.String()
}

// DropCollection drops a table from the database.
func (s *SQLiteInteractor) DropCollection(collection string) error {
	fullTableName := s.getTableName(collection)
	if _, err := s.runner().Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s;", fullTableName)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", fullTableName, err)
	}
	return nil
}

// CollectionExists checks if a table exists in the database.
func (s *SQLiteInteractor) CollectionExists(collection string) (bool, error) {
	var name string
	err := s.runner().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ?;",
		s.options.TablePrefix+collection,
	).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DescribeCollection reads the schema of an existing table.
func (s *SQLiteInteractor) DescribeCollection(collection string) (*schema.SchemaDefinition, error) {
	rows, err := s.runner().Query(fmt.Sprintf("PRAGMA table_info(%s);", s.getTableName(collection)))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", collection, err)
	}
	defer rows.Close()

	sc := &schema.SchemaDefinition{Name: collection, Version: "1", Fields: map[string]*schema.FieldDefinition{}}
	type pkColumn struct {
		name string
		pos  int
	}
	var pks []pkColumn
	for rows.Next() {
		var (
			cid       int
			name      string
			declared  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", collection, err)
		}
		field := &schema.FieldDefinition{Name: name, Type: fieldTypeOf(declared)}
		if notNull != 0 {
			field.Required = schema.BoolPtr(true)
		}
		sc.Fields[name] = field
		if pk > 0 {
			pks = append(pks, pkColumn{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sc.Fields) == 0 {
		return nil, fmt.Errorf("table %s does not exist", collection)
	}
	if len(pks) > 0 {
		fields := make([]string, len(pks))
		for _, c := range pks {
			fields[c.pos-1] = c.name
		}
		sc.Indexes = []schema.IndexDefinition{{Name: "pk_" + collection, Fields: fields, Type: schema.IndexTypePrimary}}
	}
	return sc, nil
}
