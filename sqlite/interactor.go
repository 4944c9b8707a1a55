// Package sqlite implements persistence.DatabaseInteractor for SQLite and
// builds dataset sources and sinks on top of it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
	"go.uber.org/zap"
)

// dbRunner abstracts the common methods of *sql.DB and *sql.Tx so the same
// code serves transactional and non-transactional operations.
type dbRunner interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteInteractor is the SQLite persistence.DatabaseInteractor. It operates
// in transactional mode when created with a non-nil *sql.Tx.
type SQLiteInteractor struct {
	db                    *sql.DB
	tx                    *sql.Tx
	queryGeneratorFactory query.QueryGeneratorFactory
	logger                *zap.Logger
	options               *persistence.InteractorOptions
}

var _ persistence.DatabaseInteractor = (*SQLiteInteractor)(nil)

// NewSQLiteInteractor creates a new instance of the SQLiteInteractor.
func NewSQLiteInteractor(db *sql.DB, logger *zap.Logger, options *persistence.InteractorOptions, tx *sql.Tx) *SQLiteInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &SQLiteInteractor{
		db:                    db,
		tx:                    tx,
		options:               options,
		queryGeneratorFactory: NewSqliteQueryGeneratorFactory(),
		logger:                logger,
	}
}

func (i *SQLiteInteractor) runner() dbRunner {
	if i.tx != nil {
		return i.tx
	}
	return i.db
}

// generator returns a query generator for sc with the table prefix applied.
func (i *SQLiteInteractor) generator(sc *schema.SchemaDefinition) (query.QueryGenerator, error) {
	if sc == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	prefixed := *sc
	prefixed.Name = i.options.TablePrefix + sc.Name
	g, err := i.queryGeneratorFactory.CreateGenerator(&prefixed)
	if err != nil {
		return nil, fmt.Errorf("could not get a query generator instance: %w", err)
	}
	return g, nil
}

// readRows reads every row into a schema.Document, converting values by the
// declared field type. Columns missing from the schema keep the driver value.
func readRows(logger *zap.Logger, sc *schema.SchemaDefinition, rows *sql.Rows) ([]schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []schema.Document
	for rows.Next() {
		row := make(schema.Document, len(columns))
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			if val == nil {
				row[col] = nil
				continue
			}

			var fieldDef *schema.FieldDefinition
			if sc != nil {
				fieldDef = sc.Fields[col]
			}
			if fieldDef == nil {
				row[col] = val
				continue
			}

			switch fieldDef.Type {
			case schema.FieldTypeBoolean:
				if intVal, isInt := val.(int64); isInt {
					row[col] = intVal != 0
				} else {
					row[col] = val
				}
			case schema.FieldTypeInteger:
				if floatVal, isFloat := val.(float64); isFloat {
					row[col] = int64(floatVal)
				} else {
					row[col] = val
				}
			case schema.FieldTypeNumber:
				if intVal, isInt := val.(int64); isInt {
					row[col] = float64(intVal)
				} else {
					row[col] = val
				}
			case schema.FieldTypeDateTime:
				if s, isString := val.(string); isString {
					if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
						row[col] = t
						continue
					}
					logger.Debug("Unparsed datetime value", zap.String("column", col), zap.String("value", s))
				}
				row[col] = val
			default:
				row[col] = val
			}
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

// SelectDocuments executes a SELECT query against the database.
func (i *SQLiteInteractor) SelectDocuments(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return nil, err
	}

	sqlQuery, queryParams, err := queryGenerator.GenerateSelectSQL(dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}

	i.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()
	return readRows(i.logger, sc, rows)
}

// UpdateDocuments executes an UPDATE query against the database.
func (i *SQLiteInteractor) UpdateDocuments(ctx context.Context, sc *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return 0, err
	}

	sqlQuery, queryParams, err := queryGenerator.GenerateUpdateSQL(updates, filters)
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL UPDATE query: %w", err)
	}

	i.logger.Debug("Executing SQL UPDATE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute UPDATE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute UPDATE query: %w", err)
	}
	return result.RowsAffected()
}

// InsertDocuments inserts records and returns the stored rows.
func (i *SQLiteInteractor) InsertDocuments(ctx context.Context, sc *schema.SchemaDefinition, records []map[string]any) ([]schema.Document, error) {
	if len(records) == 0 {
		return []schema.Document{}, nil
	}
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return nil, err
	}

	sqlQuery, queryParams, err := queryGenerator.GenerateInsertSQL(records)
	if err != nil {
		return nil, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}

	i.logger.Debug("Executing SQL INSERT with RETURNING clause", zap.String("sql", sqlQuery), zap.Int("records", len(records)))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute INSERT ... RETURNING query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute INSERT ... RETURNING query: %w", err)
	}
	defer rows.Close()
	return readRows(i.logger, sc, rows)
}

// DeleteDocuments executes a DELETE query against the database.
func (i *SQLiteInteractor) DeleteDocuments(ctx context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return 0, err
	}

	sqlQuery, queryParams, err := queryGenerator.GenerateDeleteSQL(filters, unsafeDelete)
	if err != nil {
		return 0, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}

	i.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute DELETE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return result.RowsAffected()
}

// StartTransaction begins a new database transaction and returns an
// interactor scoped to it.
func (i *SQLiteInteractor) StartTransaction(ctx context.Context) (persistence.DatabaseInteractor, error) {
	if i.tx != nil {
		return nil, fmt.Errorf("cannot start a new transaction from an existing transactional interactor")
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	i.logger.Debug("Transaction initiated, returning new transactional interactor")
	return NewSQLiteInteractor(i.db, i.logger, i.options, tx), nil
}

// Commit commits the current transaction.
func (i *SQLiteInteractor) Commit(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("commit not applicable: not in a transactional context")
	}
	i.logger.Debug("Committing transaction")
	return i.tx.Commit()
}

// Rollback rolls back the current transaction.
func (i *SQLiteInteractor) Rollback(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("rollback not applicable: not in a transactional context")
	}
	i.logger.Debug("Rolling back transaction")
	return i.tx.Rollback()
}
