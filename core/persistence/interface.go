package persistence

import (
	"context"

	"github.com/asaidimu/go-dataopt/core/schema"
)

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	DocumentAppendStart     PersistenceEventType = "document:append:start"
	DocumentAppendSuccess   PersistenceEventType = "document:append:success"
	DocumentAppendFailed    PersistenceEventType = "document:append:failed"
	DocumentMergeStart      PersistenceEventType = "document:merge:start"
	DocumentMergeSuccess    PersistenceEventType = "document:merge:success"
	DocumentMergeFailed     PersistenceEventType = "document:merge:failed"
	DocumentSaveStart       PersistenceEventType = "document:save:start"
	DocumentSaveSuccess     PersistenceEventType = "document:save:success"
	DocumentSaveFailed      PersistenceEventType = "document:save:failed"
	CollectionCreateStart   PersistenceEventType = "collection:create:start"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	CollectionCreateFailed  PersistenceEventType = "collection:create:failed"
	SubscriptionRegister    PersistenceEventType = "subscription:register"
	SubscriptionUnregister  PersistenceEventType = "subscription:unregister"
)

// Issue represents a validation or operational issue.
type Issue = schema.Issue

// PersistenceEvent represents events emitted during persistence operations.
type PersistenceEvent struct {
	Type          PersistenceEventType `json:"type"`
	Timestamp     int64                `json:"timestamp"` // Unix milliseconds.
	Operation     string               `json:"operation"`
	Collection    *string              `json:"collection,omitempty"`
	Input         any                  `json:"input,omitempty"`
	Output        any                  `json:"output,omitempty"`
	Error         *string              `json:"error,omitempty"`
	Issues        []Issue              `json:"issues,omitempty"`
	Query         any                  `json:"query,omitempty"`
	TransactionID *string              `json:"transactionId,omitempty"`
	Duration      *int64               `json:"duration,omitempty"` // Milliseconds.
	Context       map[string]any       `json:"context,omitempty"`
}

type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a subscription configuration.
type SubscriptionInfo struct {
	ID          string               `json:"id"`
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// WriteResult summarises one sink write.
type WriteResult struct {
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
	Deleted  int64 `json:"deleted"`
}
