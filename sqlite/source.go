package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
	"go.uber.org/zap"
)

// QuerySource loads the result of a raw SQL query. Named parameters
// (:name, @name or $name) are bound from the load parameters; names with no
// parameter bind NULL.
type QuerySource struct {
	db     *sql.DB
	name   string
	sql    string
	logger *zap.Logger
}

var _ persistence.DataSetSource = (*QuerySource)(nil)

// NewQuerySource returns a source producing a dataset called name.
func NewQuerySource(db *sql.DB, name, sqlQuery string, logger *zap.Logger) *QuerySource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuerySource{db: db, name: name, sql: sqlQuery, logger: logger}
}

// Load runs the query.
func (q *QuerySource) Load(ctx context.Context, params map[string]any) (*dataset.DataSet, error) {
	names := namedParameters(q.sql)
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(name, params[name])
	}
	q.logger.Debug("Executing source query", zap.String("dataSet", q.name), zap.String("sql", q.sql), zap.Strings("params", names))

	rows, err := q.db.QueryContext(ctx, q.sql, args...)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", q.name, err)
	}
	defer rows.Close()
	docs, err := readRows(q.logger, nil, rows)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", q.name, err)
	}
	return toDataSet(q.name, nil, docs), nil
}

// namedParameters returns the distinct parameter names referenced by query in
// order of first use, ignoring quoted text.
func namedParameters(query string) []string {
	var names []string
	seen := map[string]bool{}
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		case ':', '@', '$':
		default:
			continue
		}
		// "::" is not a parameter.
		if c == ':' && i+1 < len(query) && query[i+1] == ':' {
			i++
			continue
		}
		j := i + 1
		for j < len(query) && isIdentByte(query[j]) {
			j++
		}
		if j > i+1 && !isDigit(query[i+1]) {
			name := query[i+1 : j]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		i = j - 1
	}
	return names
}

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// TableSource reads a table through the query DSL. String filter values of the
// form ":name" are bound from the load parameters.
type TableSource struct {
	interactor *SQLiteInteractor
	name       string
	table      string
	query      query.QueryDSL
}

var _ persistence.DataSetSource = (*TableSource)(nil)

// NewTableSource returns a source producing a dataset called name from table.
// A nil dsl reads every row.
func NewTableSource(interactor *SQLiteInteractor, name, table string, dsl *query.QueryDSL) *TableSource {
	src := &TableSource{interactor: interactor, name: name, table: table}
	if dsl != nil {
		src.query = dsl.Clone()
	}
	return src
}

// Load reads the table. A missing table yields no dataset.
func (t *TableSource) Load(ctx context.Context, params map[string]any) (*dataset.DataSet, error) {
	exists, err := t.interactor.CollectionExists(t.table)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", t.name, err)
	}
	if !exists {
		t.interactor.logger.Warn("Source table does not exist", zap.String("dataSet", t.name), zap.String("table", t.table))
		return nil, nil
	}
	sc, err := t.interactor.DescribeCollection(t.table)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", t.name, err)
	}
	dsl := t.query.Clone()
	dsl.Filters = dsl.Filters.Bind(params)
	if res := dsl.Validate(); !res.IsValid {
		return nil, fmt.Errorf("source %s: %w", t.name, res.Errors[0])
	}

	docs, err := t.interactor.SelectDocuments(ctx, sc, &dsl)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", t.name, err)
	}
	return toDataSet(t.name, sc, docs), nil
}

// toDataSet converts documents into a dataset, restoring values by the field
// types of sc when it is known.
func toDataSet(name string, sc *schema.SchemaDefinition, docs []schema.Document) *dataset.DataSet {
	rows := make([]dataset.Row, len(docs))
	for i, doc := range docs {
		row := make(dataset.Row, len(doc))
		for col, raw := range doc {
			var field *schema.FieldDefinition
			if sc != nil {
				field = sc.Fields[col]
			}
			row[col] = field.ToValue(raw)
		}
		rows[i] = row
	}
	ds := dataset.New(name, rows)
	if sc != nil {
		ds.Dimensions = sc.PrimaryKey()
	}
	return ds
}

// sortedCodes returns the keys of m in order.
func sortedCodes(m map[string]*sql.DB) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
