// Package pipeline runs step lists against a BizModel. Each step is dispatched
// by its operation tag to an Operator from a Registry; results are stored back
// into the model under the step target.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StatusExecuted StepStatus = "executed"
	StatusSkipped  StepStatus = "skipped"
	StatusFailed   StepStatus = "failed"
)

// StepReport describes what happened to one step.
type StepReport struct {
	Index     int           `json:"index"`
	Operation string        `json:"operation"`
	Source    string        `json:"source,omitempty"`
	Target    string        `json:"target,omitempty"`
	Status    StepStatus    `json:"status"`
	Rows      int           `json:"rows"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunReport describes a whole run.
type RunReport struct {
	RunID    string        `json:"runId"`
	Model    string        `json:"model"`
	Steps    []StepReport  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Count returns how many steps ended with status.
func (r *RunReport) Count(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Registry resolves operation tags. Nil means BaseRegistry.
	Registry *Registry
	// Metrics is optional.
	Metrics *Metrics
}

// DefaultEngineOptions returns options running the core operators only.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{Registry: BaseRegistry()}
}

// Engine executes step lists. It holds no per-run state, so one engine may run
// several independent models at once.
type Engine struct {
	registry *Registry
	metrics  *Metrics
	bus      *events.TypedEventBus[PipelineEvent]
	logger   *zap.Logger
}

// NewEngine creates an engine.
func NewEngine(options EngineOptions, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.Registry == nil {
		options.Registry = BaseRegistry()
	}
	bus, err := events.NewTypedEventBus[PipelineEvent](events.DefaultConfig())
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize event bus")
	}
	return &Engine{
		registry: options.Registry,
		metrics:  options.Metrics,
		bus:      bus,
		logger:   logger,
	}, nil
}

// Registry returns the registry the engine dispatches through.
func (e *Engine) Registry() *Registry { return e.registry }

// Run applies steps to model in order, on the calling goroutine. Steps with a
// blank or unknown operation, and steps reading a dataset the model lacks, are
// skipped. Any other step error stops the run and is returned as a *StepError;
// the report covers the steps attempted so far.
func (e *Engine) Run(ctx context.Context, model *dataset.BizModel, steps StepList) (*RunReport, error) {
	if model == nil {
		return nil, ErrModelMustBeSet
	}
	start := time.Now()
	report := &RunReport{RunID: uuid.New().String(), Model: model.Name()}
	log := e.logger.With(zap.String("run", report.RunID), zap.String("model", model.Name()))
	log.Debug("Pipeline run started", zap.Int("steps", len(steps.Steps)))
	e.emit(PipelineEvent{Type: RunStart, RunID: report.RunID, Model: model.Name(), Timestamp: start})

	for i, step := range steps.Steps {
		sr, err := e.runStep(ctx, model, report.RunID, i, step, log)
		report.Steps = append(report.Steps, sr)
		if err != nil {
			report.Duration = time.Since(start)
			log.Error("Pipeline run failed", zap.Int("step", i), zap.Error(err))
			e.metrics.observeRun("failed")
			e.emit(PipelineEvent{
				Type: RunFailed, RunID: report.RunID, Model: model.Name(), StepIndex: i,
				Operation: sr.Operation, Error: errString(err), Duration: report.Duration,
			})
			return report, err
		}
	}

	report.Duration = time.Since(start)
	log.Debug("Pipeline run finished",
		zap.Int("executed", report.Count(StatusExecuted)),
		zap.Int("skipped", report.Count(StatusSkipped)),
		zap.Duration("duration", report.Duration))
	e.metrics.observeRun("success")
	e.emit(PipelineEvent{Type: RunSuccess, RunID: report.RunID, Model: model.Name(), Duration: report.Duration})
	return report, nil
}

func (e *Engine) runStep(ctx context.Context, model *dataset.BizModel, runID string, index int, raw Step, log *zap.Logger) (StepReport, error) {
	op := strings.TrimSpace(raw.Operation)
	step := raw.resolve(model.Name())
	step.Operation = op
	sr := StepReport{Index: index, Operation: op, Source: step.Source, Target: step.Target}
	event := PipelineEvent{
		RunID: runID, Model: model.Name(), StepIndex: index,
		Operation: op, Source: step.Source, Target: step.Target,
	}
	log = log.With(zap.Int("step", index), zap.String("operation", op))

	operator, ok := e.registry.Lookup(op)
	if !ok {
		sr.Status = StatusSkipped
		sr.Reason = "unknown operation"
		log.Debug("Unknown operation, step skipped")
		e.metrics.observeStep(op, StatusSkipped, 0)
		event.Type = StepSkipped
		e.emit(event)
		return sr, nil
	}

	start := time.Now()
	event.Type = StepStart
	e.emit(event)
	sc := &StepContext{Model: model, Step: step, Index: index, Logger: log}
	err := operator.Apply(ctx, sc)
	sr.Duration = time.Since(start)
	event.Duration = sr.Duration

	switch {
	case errors.Is(err, ErrMissingDataSet):
		sr.Status = StatusSkipped
		sr.Reason = err.Error()
		log.Warn("Step skipped", zap.Error(err))
		e.metrics.observeStep(op, StatusSkipped, sr.Duration)
		event.Type = StepSkipped
		event.Error = errString(err)
		e.emit(event)
		return sr, nil
	case err != nil:
		sr.Status = StatusFailed
		sr.Reason = err.Error()
		e.metrics.observeStep(op, StatusFailed, sr.Duration)
		event.Type = StepFailed
		event.Error = errString(err)
		e.emit(event)
		return sr, &StepError{Index: index, Operation: op, Err: err}
	}

	sr.Status = StatusExecuted
	if produced := sc.Produced(); produced != nil {
		sr.Rows = produced.RowCount()
		e.metrics.observeRows(step.Target, sr.Rows)
	}
	log.Debug("Step applied", zap.String("target", step.Target), zap.Int("rows", sr.Rows), zap.Duration("duration", sr.Duration))
	e.metrics.observeStep(op, StatusExecuted, sr.Duration)
	event.Type = StepSuccess
	event.Rows = sr.Rows
	e.emit(event)
	return sr, nil
}
