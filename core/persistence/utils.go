package persistence

import (
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
)

func createEvent(
	eventType PersistenceEventType,
	operation string,
	collectionName string,
	input any,
	output any,
	query any,
	err *string,
	issues []Issue,
	startTime time.Time,
) PersistenceEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	return PersistenceEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Collection: &collectionName,
		Input:      input,
		Output:     output,
		Error:      err,
		Issues:     issues,
		Query:      query,
		Duration:   duration,
	}
}

// inputSummary keeps event payloads small: datasets are reported by name and
// size instead of by content.
func inputSummary(input any) any {
	ds, ok := input.(*dataset.DataSet)
	if !ok {
		return input
	}
	if ds == nil {
		return map[string]any{"rows": 0}
	}
	return map[string]any{"dataSet": ds.Name, "rows": len(ds.Rows)}
}
