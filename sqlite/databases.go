package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/core/query"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// ErrUnknownDatabase is returned when a database code was never registered.
var ErrUnknownDatabase = errors.New("unknown database")

// Databases maps database codes to SQLite connections. It resolves the sinks
// of persistence steps and the sources of packet datasets.
type Databases struct {
	mu      sync.RWMutex
	dbs     map[string]*sql.DB
	owned   map[string]bool
	options *persistence.InteractorOptions
	logger  *zap.Logger
}

var _ persistence.SinkProvider = (*Databases)(nil)

// NewDatabases creates an empty registry. nil options select
// DefaultInteractorOptions.
func NewDatabases(logger *zap.Logger, options *persistence.InteractorOptions) *Databases {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &Databases{
		dbs:     map[string]*sql.DB{},
		owned:   map[string]bool{},
		options: options,
		logger:  logger,
	}
}

// Add registers an open connection under code. The caller keeps ownership.
func (d *Databases) Add(code string, db *sql.DB) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dbs[code] = db
	delete(d.owned, code)
}

// Open opens the SQLite database at dsn and registers it under code. In-memory
// databases are limited to one connection so every query sees the same data.
func (d *Databases) Open(code, dsn string) error {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open database %s: %w", code, err)
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("open database %s: %w", code, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dbs[code] = db
	d.owned[code] = true
	d.logger.Debug("Opened database", zap.String("code", code), zap.String("dsn", dsn))
	return nil
}

// Codes returns the registered database codes in order.
func (d *Databases) Codes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedCodes(d.dbs)
}

// DB returns the connection registered under code.
func (d *Databases) DB(code string) (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	db, ok := d.dbs[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, code)
	}
	return db, nil
}

// Interactor returns a non-transactional interactor over the database code.
func (d *Databases) Interactor(code string) (*SQLiteInteractor, error) {
	db, err := d.DB(code)
	if err != nil {
		return nil, err
	}
	return NewSQLiteInteractor(db, d.logger, d.options, nil), nil
}

// Sink returns a table writer for tableName in database code. Write outcomes
// are logged through the table's event bus.
func (d *Databases) Sink(code, tableName string, primaryKey []string) (persistence.DataSetSink, error) {
	interactor, err := d.Interactor(code)
	if err != nil {
		return nil, err
	}
	table, err := persistence.NewTable(interactor, tableName, primaryKey, d.logger)
	if err != nil {
		return nil, err
	}
	logEvent := func(_ context.Context, e persistence.PersistenceEvent) error {
		fields := []zap.Field{
			zap.String("database", code),
			zap.String("table", tableName),
			zap.String("event", string(e.Type)),
			zap.Any("output", e.Output),
		}
		if e.Error != nil {
			d.logger.Warn("Table write failed", append(fields, zap.String("error", *e.Error), zap.Any("issues", e.Issues))...)
			return nil
		}
		d.logger.Debug("Table write", fields...)
		return nil
	}
	for _, ev := range []persistence.PersistenceEventType{
		persistence.DocumentAppendSuccess, persistence.DocumentAppendFailed,
		persistence.DocumentMergeSuccess, persistence.DocumentMergeFailed,
		persistence.DocumentSaveSuccess, persistence.DocumentSaveFailed,
	} {
		table.RegisterSubscription(persistence.RegisterSubscriptionOptions{Event: ev, Callback: logEvent})
	}
	return table, nil
}

// QuerySource returns a source running sqlQuery against database code.
func (d *Databases) QuerySource(code, name, sqlQuery string) (persistence.DataSetSource, error) {
	db, err := d.DB(code)
	if err != nil {
		return nil, err
	}
	return NewQuerySource(db, name, sqlQuery, d.logger), nil
}

// TableSource returns a source reading table from database code.
func (d *Databases) TableSource(code, name, table string, dsl *query.QueryDSL) (persistence.DataSetSource, error) {
	interactor, err := d.Interactor(code)
	if err != nil {
		return nil, err
	}
	return NewTableSource(interactor, name, table, dsl), nil
}

// Close closes the databases opened through Open.
func (d *Databases) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for code, db := range d.dbs {
		if !d.owned[code] {
			continue
		}
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database %s: %w", code, err))
		}
	}
	d.dbs = map[string]*sql.DB{}
	d.owned = map[string]bool{}
	return errors.Join(errs...)
}
