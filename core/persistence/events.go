package persistence

import (
	"errors"
	"time"
)

// emitEvent publishes event on the table bus.
func (t *Table) emitEvent(event PersistenceEvent) {
	if t.bus != nil {
		t.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success, and failure events.
func (t *Table) withEventEmission(
	operation string,
	startEventType PersistenceEventType,
	successEventType PersistenceEventType,
	failedEventType PersistenceEventType,
	input any,
	fn func() (WriteResult, error),
) (WriteResult, error) {
	startTime := time.Now()
	summary := inputSummary(input)

	t.emitEvent(createEvent(startEventType, operation, t.name, summary, nil, nil, nil, nil, startTime))

	result, err := fn()
	if err != nil {
		errStr := err.Error()
		var issues []Issue
		var verr *ValidationError
		if errors.As(err, &verr) {
			issues = verr.Issues
		}
		t.emitEvent(createEvent(failedEventType, operation, t.name, summary, nil, nil, &errStr, issues, startTime))
		return WriteResult{}, err
	}

	t.emitEvent(createEvent(successEventType, operation, t.name, summary, result, nil, nil, nil, startTime))
	return result, nil
}
