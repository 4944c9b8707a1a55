package source

import (
	"context"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/core/query"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Databases resolves the database backed sources of a packet.
type Databases interface {
	QuerySource(code, name, sqlQuery string) (persistence.DataSetSource, error)
	TableSource(code, name, table string, dsl *query.QueryDSL) (persistence.DataSetSource, error)
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Concurrency bounds the sources loaded at once.
	Concurrency int
	// BaseDir resolves relative file paths.
	BaseDir string
}

// DefaultLoaderOptions returns options loading four sources at a time relative
// to the working directory.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{Concurrency: 4}
}

// Loader fills a BizModel from the datasets of a packet.
type Loader struct {
	databases Databases
	options   LoaderOptions
	logger    *zap.Logger
}

// NewLoader creates a loader. databases may be nil when no packet names a
// sqlite source.
func NewLoader(databases Databases, options LoaderOptions, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultLoaderOptions().Concurrency
	}
	return &Loader{databases: databases, options: options, logger: logger}
}

// Source builds the source described by def.
func (l *Loader) Source(def DataSetDefinition) (persistence.DataSetSource, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	switch def.Type {
	case TypeJSON:
		return JSONFile(def.Name, l.path(def.Path)), nil
	case TypeCSV:
		options := CSVOptions{RawStrings: def.RawStrings}
		if def.Delimiter != "" {
			r, _ := utf8.DecodeRuneInString(def.Delimiter)
			options.Comma = r
		}
		return CSVFile(def.Name, l.path(def.Path), options), nil
	case TypeInline:
		return Inline(def.Name, def.Data), nil
	default:
		if l.databases == nil {
			return nil, fmt.Errorf("dataset %s: no database is configured", def.Name)
		}
		if def.Query != "" {
			return l.databases.QuerySource(def.DatabaseCode, def.Name, def.Query)
		}
		return l.databases.TableSource(def.DatabaseCode, def.Name, def.Table, def.Filter)
	}
}

func (l *Loader) path(p string) string {
	if l.options.BaseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.options.BaseDir, p)
}

// Load creates the packet model: its name and tags, then every dataset. The
// sources run concurrently with the model tags as parameters; results are
// stored once all of them succeeded. A source that yields nothing leaves its
// dataset absent. The dataset flagged main, or the only dataset of an
// unnamed packet, becomes the main dataset.
func (l *Loader) Load(ctx context.Context, packet *Packet) (*dataset.BizModel, error) {
	model := dataset.NewBizModel(packet.Name)
	for k, v := range packet.ModelTag {
		model.PutTag(k, v)
	}
	params := make(map[string]any, len(packet.ModelTag))
	for k, v := range model.ModelTag() {
		params[k] = v.Any()
	}

	sources := make([]persistence.DataSetSource, len(packet.DataSets))
	for i, def := range packet.DataSets {
		src, err := l.Source(def)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}

	results := make([]*dataset.DataSet, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.options.Concurrency)
	for i, src := range sources {
		def := packet.DataSets[i]
		g.Go(func() error {
			ds, err := src.Load(gctx, params)
			if err != nil {
				return fmt.Errorf("load dataset %s: %w", def.Name, err)
			}
			results[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.logger.Error("Failed to load packet", zap.String("packet", packet.Name), zap.Error(err))
		return nil, err
	}

	implicitMain := packet.Name == "" && len(packet.DataSets) == 1
	for i, def := range packet.DataSets {
		ds := results[i]
		if ds == nil {
			l.logger.Warn("Source returned no dataset", zap.String("dataSet", def.Name), zap.String("type", string(def.Type)))
			continue
		}
		ds.Name = def.Name
		if def.Main || implicitMain {
			model.SetMainDataSet(ds)
		} else {
			model.AddDataSet(def.Name, ds)
		}
		l.logger.Debug("Dataset loaded", zap.String("dataSet", def.Name), zap.Int("rows", ds.RowCount()))
	}
	return model, nil
}
