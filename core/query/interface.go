package query

import (
	"github.com/asaidimu/go-dataopt/core/schema"
)

// QueryGeneratorFactory creates QueryGenerator instances bound to one table schema.
type QueryGeneratorFactory interface {
	CreateGenerator(schema *schema.SchemaDefinition) (QueryGenerator, error)
}

// QueryGenerator translates the DSL into one SQL dialect. Every method returns
// the statement and its positional parameters.
type QueryGenerator interface {
	GenerateSelectSQL(dsl *QueryDSL) (string, []any, error)

	// GenerateUpdateSQL builds the SET and WHERE clauses of an update.
	GenerateUpdateSQL(updates map[string]any, filters *QueryFilter) (string, []any, error)

	// GenerateInsertSQL supports single and batch inserts.
	GenerateInsertSQL(records []map[string]any) (string, []any, error)

	// GenerateDeleteSQL requires a filter unless unsafeDelete is set.
	GenerateDeleteSQL(filters *QueryFilter, unsafeDelete bool) (string, []any, error)
}
