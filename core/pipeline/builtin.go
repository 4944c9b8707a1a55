package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/operator"
	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Operation tags.
const (
	OpMap         = "map"
	OpFilter      = "filter"
	OpStat        = "stat"
	OpAnalyse     = "analyse"
	OpCross       = "cross"
	OpCompare     = "compare"
	OpAppend      = "append"
	OpJoin        = "join"
	OpUnion       = "union"
	OpSort        = "sort"
	OpPersistence = "persistence"
)

type mapParams struct {
	Map       map[string]any `json:"map"`
	FieldsMap map[string]any `json:"fieldsMap"`
}

// formulas merges both spellings of the field mapping; fieldsMap wins.
func (p mapParams) formulas() map[string]string {
	out := make(map[string]string, len(p.Map)+len(p.FieldsMap))
	for _, m := range []map[string]any{p.Map, p.FieldsMap} {
		for field, f := range m {
			out[field] = dataset.FromAny(f).AsString()
		}
	}
	return out
}

type filterParams struct {
	Filter string `json:"filter"`
}

type statParams struct {
	GroupBy utils.StringList `json:"groupBy"`
	Stat    map[string]any   `json:"stat"`
}

type analyseParams struct {
	GroupBy utils.StringList `json:"groupBy"`
	OrderBy utils.StringList `json:"orderBy"`
	Analyse map[string]any   `json:"analyse"`
}

type crossParams struct {
	RowHeader utils.StringList `json:"rowHeader"`
	ColHeader utils.StringList `json:"colHeader"`
	Stat      any              `json:"stat"`
}

type compareParams struct {
	PrimaryKey    utils.StringList `json:"primaryKey"`
	WithUnchanged *bool            `json:"withUnchanged"`
}

type joinParams struct {
	PrimaryKey utils.StringList  `json:"primaryKey"`
	JoinOn     map[string]string `json:"joinOn"`
	JoinType   string            `json:"joinType"`
}

type sortParams struct {
	OrderBy utils.StringList `json:"orderBy"`
}

type unionParams struct {
	Distinct bool `json:"distinct"`
}

type persistenceParams struct {
	DatabaseCode string           `json:"databaseCode"`
	TableName    string           `json:"tableName"`
	WriterType   string           `json:"writerType"`
	PrimaryKey   utils.StringList `json:"primaryKey"`
}

var (
	baseOnce sync.Once
	base     *Registry
)

// BaseRegistry returns the registry of the core operators: map, filter, stat,
// analyse, cross and compare. The registry is shared; extend it rather than
// registering into it.
func BaseRegistry() *Registry {
	baseOnce.Do(func() {
		base = NewRegistry(nil, map[string]Operator{
			OpMap:     OperatorFunc(runMap),
			OpFilter:  OperatorFunc(runFilter),
			OpStat:    OperatorFunc(runStat),
			OpAnalyse: OperatorFunc(runAnalyse),
			OpCross:   OperatorFunc(runCross),
			OpCompare: OperatorFunc(runCompare),
		})
	})
	return base
}

// ExtendedRegistry adds append, join, union, sort and persistence on top of the
// base registry. Persistence steps resolve their sink through sinks; with a nil
// provider every persistence step is a configuration error.
func ExtendedRegistry(sinks persistence.SinkProvider) *Registry {
	return BaseRegistry().Extend(map[string]Operator{
		OpAppend:      OperatorFunc(runAppend),
		OpJoin:        OperatorFunc(runJoin),
		OpUnion:       OperatorFunc(runUnion),
		OpSort:        OperatorFunc(runSort),
		OpPersistence: PersistenceOperator{Sinks: sinks},
	})
}

func runMap(_ context.Context, sc *StepContext) error {
	return deriveFields(sc, operator.MapDataSet)
}

func runAppend(_ context.Context, sc *StepContext) error {
	return deriveFields(sc, operator.AppendFields)
}

type deriveFunc func(ds *dataset.DataSet, name string, mapping map[string]string, log *zap.Logger) (*dataset.DataSet, error)

func deriveFields(sc *StepContext, derive deriveFunc) error {
	p, err := DecodeParams[mapParams](sc)
	if err != nil {
		return err
	}
	mapping := p.formulas()
	if len(mapping) == 0 {
		sc.Logger.Debug("Empty field mapping, nothing to do")
		return nil
	}
	src, err := sc.Source()
	if err != nil {
		return err
	}
	out, err := derive(src, sc.Step.Target, mapping, sc.Logger)
	if err != nil {
		return invalidStep("%v", err)
	}
	sc.Output(out)
	return nil
}

func runFilter(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[filterParams](sc)
	if err != nil {
		return err
	}
	if p.Filter == "" {
		sc.Logger.Debug("Blank filter, nothing to do")
		return nil
	}
	src, err := sc.Source()
	if err != nil {
		return err
	}
	out, err := operator.FilterDataSet(src, sc.Step.Target, p.Filter, sc.Logger)
	if err != nil {
		return invalidStep("%v", err)
	}
	sc.Output(out)
	return nil
}

func runStat(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[statParams](sc)
	if err != nil {
		return err
	}
	if len(p.Stat) == 0 {
		sc.Logger.Debug("No statistics requested, nothing to do")
		return nil
	}
	specs, err := operator.ParseAggSpecs(p.Stat)
	if err != nil {
		return invalidStep("%v", err)
	}
	src, err := sc.Source()
	if err != nil {
		return err
	}
	sc.Output(operator.StatDataSet(src, sc.Step.Target, p.GroupBy, specs))
	return nil
}

func runAnalyse(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[analyseParams](sc)
	if err != nil {
		return err
	}
	if len(p.Analyse) == 0 {
		sc.Logger.Debug("No analysis requested, nothing to do")
		return nil
	}
	specs, err := operator.ParseAnalyseSpecs(p.Analyse)
	if err != nil {
		return invalidStep("%v", err)
	}
	src, err := sc.Source()
	if err != nil {
		return err
	}
	sc.Output(operator.AnalyseDataSet(src, sc.Step.Target, p.GroupBy, p.OrderBy, specs))
	return nil
}

func runCross(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[crossParams](sc)
	if err != nil {
		return err
	}
	var cell *operator.AggSpec
	if p.Stat != nil {
		spec, err := operator.ParseAggSpec("", p.Stat)
		if err != nil {
			return invalidStep("%v", err)
		}
		spec.Output = string(spec.Func)
		cell = &spec
	}
	src, err := sc.Source()
	if err != nil {
		return err
	}
	sc.Output(operator.CrossTabulation(src, sc.Step.Target, p.RowHeader, p.ColHeader, cell))
	return nil
}

func runCompare(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[compareParams](sc)
	if err != nil {
		return err
	}
	a, err := sc.Source()
	if err != nil {
		return err
	}
	b, err := sc.Source2()
	if err != nil {
		return err
	}
	withUnchanged := p.WithUnchanged == nil || *p.WithUnchanged
	sc.Output(operator.CompareDataSets(a, b, sc.Step.Target, p.PrimaryKey, withUnchanged))
	return nil
}

func runJoin(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[joinParams](sc)
	if err != nil {
		return err
	}
	on := joinKeys(p)
	if len(on) == 0 {
		return invalidStep("join needs primaryKey or joinOn")
	}
	joinType, err := operator.ParseJoinType(p.JoinType)
	if err != nil {
		return invalidStep("%v", err)
	}
	left, err := sc.Source()
	if err != nil {
		return err
	}
	right, err := sc.Source2()
	if err != nil {
		return err
	}
	out, err := operator.JoinDataSets(left, right, sc.Step.Target, on, joinType)
	if err != nil {
		return invalidStep("%v", err)
	}
	sc.Output(out)
	return nil
}

// joinKeys lists primaryKey fields first, then joinOn pairs by left field.
func joinKeys(p joinParams) []operator.JoinKey {
	keys := make([]operator.JoinKey, 0, len(p.PrimaryKey)+len(p.JoinOn))
	for _, f := range p.PrimaryKey {
		keys = append(keys, operator.JoinKey{Left: f, Right: f})
	}
	lefts := make([]string, 0, len(p.JoinOn))
	for l := range p.JoinOn {
		lefts = append(lefts, l)
	}
	sort.Strings(lefts)
	for _, l := range lefts {
		keys = append(keys, operator.JoinKey{Left: l, Right: p.JoinOn[l]})
	}
	return keys
}

func runUnion(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[unionParams](sc)
	if err != nil {
		return err
	}
	a, err := sc.Source()
	if err != nil {
		return err
	}
	b, err := sc.Source2()
	if err != nil {
		return err
	}
	sc.Output(operator.UnionDataSets(a, b, sc.Step.Target, p.Distinct))
	return nil
}

func runSort(_ context.Context, sc *StepContext) error {
	p, err := DecodeParams[sortParams](sc)
	if err != nil {
		return err
	}
	if len(p.OrderBy) == 0 {
		sc.Logger.Debug("No sort terms, nothing to do")
		return nil
	}
	src, err := sc.Source()
	if err != nil {
		return err
	}
	sc.Output(operator.SortDataSet(src, sc.Step.Target, p.OrderBy))
	return nil
}

// PersistenceOperator writes the source dataset through a sink. It never
// changes the model. Every failure, a missing source included, is a
// configuration error, since skipping would silently drop an external write.
type PersistenceOperator struct {
	Sinks persistence.SinkProvider
}

// Apply implements Operator.
func (o PersistenceOperator) Apply(ctx context.Context, sc *StepContext) error {
	p, err := DecodeParams[persistenceParams](sc)
	if err != nil {
		return err
	}
	if p.DatabaseCode == "" || p.TableName == "" {
		return invalidStep("persistence needs databaseCode and tableName")
	}
	if o.Sinks == nil {
		return invalidStep("no database is configured for %s", p.DatabaseCode)
	}
	src, err := sc.Source()
	if err != nil {
		return errors.Wrapf(ErrInvalidStep, "persistence source: %v", err)
	}
	sink, err := o.Sinks.Sink(p.DatabaseCode, p.TableName, p.PrimaryKey)
	if err != nil {
		return errors.Wrapf(ErrInvalidStep, "persistence sink: %v", err)
	}
	result, err := persistence.WriteDataSet(ctx, sink, p.WriterType, src)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s into %s.%s", src.Name, p.DatabaseCode, p.TableName)
	}
	sc.Logger.Info("Dataset written",
		zap.String("database", p.DatabaseCode),
		zap.String("table", p.TableName),
		zap.String("writer", string(persistence.ParseWriterType(p.WriterType))),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("updated", result.Updated),
		zap.Int64("deleted", result.Deleted))
	return nil
}
