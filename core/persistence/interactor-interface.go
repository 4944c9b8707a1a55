package persistence

import (
	"context"

	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists adds IF NOT EXISTS clause to CREATE TABLE statements.
	IfNotExists bool

	// DropIfExists drops the table before creating it. The drop runs outside
	// the create transaction.
	DropIfExists bool

	// CreateIndexes creates the indexes of the schema together with the table.
	CreateIndexes bool

	// TablePrefix is prepended to every table name.
	TablePrefix string

	// SchemaName for databases that support it. Unused by SQLite.
	SchemaName string
}

// DatabaseInteractor defines the interface for interacting with the database.
// It can operate in either a non-transactional (default) or transactional mode;
// Commit and Rollback are only meaningful on an instance returned by
// StartTransaction.
type DatabaseInteractor interface {
	SelectDocuments(ctx context.Context, schema *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error)
	UpdateDocuments(ctx context.Context, schema *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error)
	InsertDocuments(ctx context.Context, schema *schema.SchemaDefinition, records []map[string]any) ([]schema.Document, error)
	DeleteDocuments(ctx context.Context, schema *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error)

	// CreateCollection generates and executes DDL statements to create a table from a schema definition.
	CreateCollection(schema schema.SchemaDefinition) error

	// DropCollection drops a table if it exists.
	DropCollection(name string) error

	// CollectionExists checks if a table exists in the database.
	CollectionExists(name string) (bool, error)

	// StartTransaction returns a new interactor bound to a fresh transaction.
	// The receiver stays non-transactional.
	StartTransaction(ctx context.Context) (DatabaseInteractor, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SchemaDescriber is implemented by interactors that can read back the schema
// of an existing table. Tables written through such an interactor validate
// incoming rows before touching the database.
type SchemaDescriber interface {
	DescribeCollection(name string) (*schema.SchemaDefinition, error)
}
