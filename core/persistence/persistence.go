// Package persistence holds the contracts through which datasets enter and
// leave a model, plus a table writer that implements the sink contract over a
// DatabaseInteractor.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

var (
	// ErrNoPrimaryKey is returned by a merge into a table without a primary key.
	ErrNoPrimaryKey = errors.New("merge requires a primary key")
	// ErrSchemaMismatch is returned when rows do not fit an existing table.
	ErrSchemaMismatch = errors.New("rows do not match the table schema")
)

// ValidationError carries the issues found while checking rows against an
// existing table. It matches ErrSchemaMismatch.
type ValidationError struct {
	Table  string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("table %s: %v", e.Table, ErrSchemaMismatch)
	}
	first := e.Issues[0]
	return fmt.Sprintf("table %s: %v: %s: %s (%d issues)", e.Table, ErrSchemaMismatch, first.Path, first.Message, len(e.Issues))
}

func (e *ValidationError) Unwrap() error { return ErrSchemaMismatch }

// DataSetSource loads one dataset. params carries the model tags, which sources
// use as query parameters. A nil dataset with a nil error means the source had
// nothing to offer.
type DataSetSource interface {
	Load(ctx context.Context, params map[string]any) (*dataset.DataSet, error)
}

// SourceFunc adapts a function to DataSetSource.
type SourceFunc func(ctx context.Context, params map[string]any) (*dataset.DataSet, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context, params map[string]any) (*dataset.DataSet, error) {
	return f(ctx, params)
}

// DataSetSink writes a dataset to an external table.
type DataSetSink interface {
	// Append inserts every row.
	Append(ctx context.Context, ds *dataset.DataSet) (WriteResult, error)
	// Merge updates rows matching on the primary key and inserts the rest.
	Merge(ctx context.Context, ds *dataset.DataSet) (WriteResult, error)
	// Save replaces the table contents with the rows of ds.
	Save(ctx context.Context, ds *dataset.DataSet) (WriteResult, error)
}

// SinkProvider resolves a sink from a database code and a table name.
type SinkProvider interface {
	Sink(databaseCode, tableName string, primaryKey []string) (DataSetSink, error)
}

// WriterType selects the DataSetSink method used by WriteDataSet.
type WriterType string

const (
	WriterAppend WriterType = "append"
	WriterMerge  WriterType = "merge"
	WriterUpdate WriterType = "update"
	WriterSave   WriterType = "save"
)

// ParseWriterType normalises a writer name. update is an alias of merge; any
// other value, blank included, is a full replace.
func ParseWriterType(s string) WriterType {
	switch WriterType(strings.ToLower(strings.TrimSpace(s))) {
	case WriterAppend:
		return WriterAppend
	case WriterMerge, WriterUpdate:
		return WriterMerge
	default:
		return WriterSave
	}
}

// WriteDataSet writes ds to sink with the method named by writerType.
func WriteDataSet(ctx context.Context, sink DataSetSink, writerType string, ds *dataset.DataSet) (WriteResult, error) {
	switch ParseWriterType(writerType) {
	case WriterAppend:
		return sink.Append(ctx, ds)
	case WriterMerge:
		return sink.Merge(ctx, ds)
	default:
		return sink.Save(ctx, ds)
	}
}
