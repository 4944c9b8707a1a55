package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StepContext is what an operator sees of a run: the model, the step with its
// defaults resolved, and a logger scoped to the step.
type StepContext struct {
	Model  *dataset.BizModel
	Step   Step
	Index  int
	Logger *zap.Logger

	produced *dataset.DataSet
}

// Source returns the step's source dataset, or an error wrapping
// ErrMissingDataSet.
func (sc *StepContext) Source() (*dataset.DataSet, error) {
	return sc.dataSet(sc.Step.Source)
}

// Source2 returns the step's second dataset, or an error wrapping
// ErrMissingDataSet.
func (sc *StepContext) Source2() (*dataset.DataSet, error) {
	if sc.Step.Source2 == "" {
		return nil, errors.Wrap(ErrMissingDataSet, "source2 is not set")
	}
	return sc.dataSet(sc.Step.Source2)
}

func (sc *StepContext) dataSet(name string) (*dataset.DataSet, error) {
	ds := sc.Model.FetchDataSetByName(name)
	if ds == nil {
		return nil, errors.Wrapf(ErrMissingDataSet, "dataset %q", name)
	}
	return ds, nil
}

// Output stores ds in the model under the step's target. A nil ds is ignored.
func (sc *StepContext) Output(ds *dataset.DataSet) {
	if ds == nil {
		return
	}
	ds.Name = sc.Step.Target
	sc.Model.AddDataSet(sc.Step.Target, ds)
	sc.produced = ds
}

// Produced returns the dataset stored by Output, if any.
func (sc *StepContext) Produced() *dataset.DataSet { return sc.produced }

// DecodeParams decodes the step parameters into T. Decoding failures are
// configuration errors.
func DecodeParams[T any](sc *StepContext) (T, error) {
	params, err := utils.MapToStruct[T](sc.Step.Params)
	if err != nil {
		var zero T
		return zero, errors.Wrapf(ErrInvalidStep, "bad %s parameters: %v", sc.Step.Operation, err)
	}
	return params, nil
}

// Operator applies one kind of step to the model.
type Operator interface {
	Apply(ctx context.Context, sc *StepContext) error
}

// OperatorFunc adapts a function to Operator.
type OperatorFunc func(ctx context.Context, sc *StepContext) error

// Apply calls f.
func (f OperatorFunc) Apply(ctx context.Context, sc *StepContext) error {
	return f(ctx, sc)
}

// Registry maps operation tags to operators. Tags it does not hold are looked
// up in the fallback registry, so a registry extends another by composition.
type Registry struct {
	mu       sync.RWMutex
	ops      map[string]Operator
	fallback *Registry
}

// NewRegistry returns a registry holding ops on top of fallback, which may be nil.
func NewRegistry(fallback *Registry, ops map[string]Operator) *Registry {
	r := &Registry{ops: make(map[string]Operator, len(ops)), fallback: fallback}
	for tag, op := range ops {
		r.ops[tag] = op
	}
	return r
}

// Register adds or replaces the operator for tag.
func (r *Registry) Register(tag string, op Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[tag] = op
}

// Lookup returns the operator for tag, searching fallbacks in turn.
func (r *Registry) Lookup(tag string) (Operator, bool) {
	for reg := r; reg != nil; reg = reg.fallback {
		reg.mu.RLock()
		op, ok := reg.ops[tag]
		reg.mu.RUnlock()
		if ok {
			return op, true
		}
	}
	return nil, false
}

// Has reports whether tag resolves to an operator.
func (r *Registry) Has(tag string) bool {
	_, ok := r.Lookup(tag)
	return ok
}

// Types lists every tag the registry resolves, sorted.
func (r *Registry) Types() []string {
	seen := map[string]struct{}{}
	for reg := r; reg != nil; reg = reg.fallback {
		reg.mu.RLock()
		for tag := range reg.ops {
			seen[tag] = struct{}{}
		}
		reg.mu.RUnlock()
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Extend returns a new registry holding ops that falls back to r.
func (r *Registry) Extend(ops map[string]Operator) *Registry {
	return NewRegistry(r, ops)
}
