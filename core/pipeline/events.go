package pipeline

import (
	"context"
	"time"
)

// PipelineEventType names an engine lifecycle event.
type PipelineEventType string

const (
	RunStart    PipelineEventType = "run:start"
	RunSuccess  PipelineEventType = "run:success"
	RunFailed   PipelineEventType = "run:failed"
	StepStart   PipelineEventType = "step:start"
	StepSuccess PipelineEventType = "step:success"
	StepFailed  PipelineEventType = "step:failed"
	StepSkipped PipelineEventType = "step:skipped"
)

// PipelineEvent is published on the engine bus. Step fields are zero on run
// events.
type PipelineEvent struct {
	Type      PipelineEventType `json:"type"`
	RunID     string            `json:"runId"`
	Model     string            `json:"model"`
	StepIndex int               `json:"stepIndex"`
	Operation string            `json:"operation,omitempty"`
	Source    string            `json:"source,omitempty"`
	Target    string            `json:"target,omitempty"`
	Rows      int               `json:"rows,omitempty"`
	Error     *string           `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration,omitempty"`
}

// PipelineEventCallback receives engine events.
type PipelineEventCallback func(ctx context.Context, event PipelineEvent) error

func (e *Engine) emit(event PipelineEvent) {
	if e.bus == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.bus.Emit(string(event.Type), event)
}

// Subscribe registers callback for events of type event and returns the
// function that removes it.
func (e *Engine) Subscribe(event PipelineEventType, callback PipelineEventCallback) func() {
	return e.bus.Subscribe(string(event), callback)
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
