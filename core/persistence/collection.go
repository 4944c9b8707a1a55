package persistence

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Table is a DataSetSink writing into one database table. The table is created
// from the first dataset written to it when it does not exist yet.
type Table struct {
	interactor    DatabaseInteractor
	name          string
	primaryKey    []string
	bus           *events.TypedEventBus[PersistenceEvent]
	logger        *zap.Logger
	mu            sync.Mutex
	subscriptions map[string]*SubscriptionInfo
}

// NewTable returns a sink for table name. primaryKey is required by Merge only.
func NewTable(interactor DatabaseInteractor, name string, primaryKey []string, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &Table{
		interactor:    interactor,
		name:          name,
		primaryKey:    slices.Clone(primaryKey),
		bus:           bus,
		logger:        logger,
		subscriptions: map[string]*SubscriptionInfo{},
	}, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Append inserts every row of ds.
func (t *Table) Append(ctx context.Context, ds *dataset.DataSet) (WriteResult, error) {
	return t.withEventEmission("append", DocumentAppendStart, DocumentAppendSuccess, DocumentAppendFailed, ds,
		func() (WriteResult, error) {
			if ds.IsEmpty() {
				return WriteResult{}, nil
			}
			return t.transact(ctx, ds, false, func(tx DatabaseInteractor, sc *schema.SchemaDefinition) (WriteResult, error) {
				inserted, err := tx.InsertDocuments(ctx, sc, ds.Documents())
				if err != nil {
					return WriteResult{}, err
				}
				return WriteResult{Inserted: int64(len(inserted))}, nil
			})
		})
}

// Merge updates the rows whose primary key matches a row of ds and inserts the
// others, all in one transaction.
func (t *Table) Merge(ctx context.Context, ds *dataset.DataSet) (WriteResult, error) {
	return t.withEventEmission("merge", DocumentMergeStart, DocumentMergeSuccess, DocumentMergeFailed, ds,
		func() (WriteResult, error) {
			if len(t.primaryKey) == 0 {
				return WriteResult{}, fmt.Errorf("table %s: %w", t.name, ErrNoPrimaryKey)
			}
			if ds.IsEmpty() {
				return WriteResult{}, nil
			}
			return t.transact(ctx, ds, true, func(tx DatabaseInteractor, sc *schema.SchemaDefinition) (WriteResult, error) {
				var res WriteResult
				var inserts []map[string]any
				for _, row := range ds.Rows {
					doc := row.Document()
					updates, key := splitKey(doc, t.primaryKey)
					if len(updates) == 0 {
						// Key-only rows have nothing to update; insert unless present.
						found, err := tx.SelectDocuments(ctx, sc, &query.QueryDSL{
							Filters:    query.KeyFilter(t.primaryKey, key),
							Pagination: &query.PaginationOptions{Limit: 1},
						})
						if err != nil {
							return res, err
						}
						if len(found) == 0 {
							inserts = append(inserts, doc)
						}
						continue
					}
					n, err := tx.UpdateDocuments(ctx, sc, updates, query.KeyFilter(t.primaryKey, key))
					if err != nil {
						return res, err
					}
					if n == 0 {
						inserts = append(inserts, doc)
						continue
					}
					res.Updated += n
				}
				if len(inserts) > 0 {
					inserted, err := tx.InsertDocuments(ctx, sc, inserts)
					if err != nil {
						return res, err
					}
					res.Inserted = int64(len(inserted))
				}
				return res, nil
			})
		})
}

// Save deletes every row of the table and inserts the rows of ds in one
// transaction.
func (t *Table) Save(ctx context.Context, ds *dataset.DataSet) (WriteResult, error) {
	return t.withEventEmission("save", DocumentSaveStart, DocumentSaveSuccess, DocumentSaveFailed, ds,
		func() (WriteResult, error) {
			if ds.IsEmpty() {
				exists, err := t.interactor.CollectionExists(t.name)
				if err != nil || !exists {
					return WriteResult{}, err
				}
			}
			return t.transact(ctx, ds, false, func(tx DatabaseInteractor, sc *schema.SchemaDefinition) (WriteResult, error) {
				deleted, err := tx.DeleteDocuments(ctx, sc, nil, true)
				if err != nil {
					return WriteResult{}, err
				}
				res := WriteResult{Deleted: deleted}
				if ds.IsEmpty() {
					return res, nil
				}
				inserted, err := tx.InsertDocuments(ctx, sc, ds.Documents())
				if err != nil {
					return res, err
				}
				res.Inserted = int64(len(inserted))
				return res, nil
			})
		})
}

// transact ensures the table exists, then runs fn inside a transaction that is
// committed on success and rolled back otherwise. Rows written to an existing
// table are validated first; loose validation skips missing required fields.
func (t *Table) transact(ctx context.Context, ds *dataset.DataSet, loose bool, fn func(DatabaseInteractor, *schema.SchemaDefinition) (WriteResult, error)) (WriteResult, error) {
	sc := schema.InferSchema(ds, t.name, t.primaryKey)
	existing, err := t.ensure(sc)
	if err != nil {
		return WriteResult{}, err
	}
	if existing != nil {
		if ok, issues := schema.NewValidator(existing).ValidateDataSet(ds, loose); !ok {
			return WriteResult{}, &ValidationError{Table: t.name, Issues: issues}
		}
	}

	tx, err := t.interactor.StartTransaction(ctx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("table %s: start transaction: %w", t.name, err)
	}
	res, err := fn(tx, sc)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			t.logger.Error("Rollback failed", zap.String("table", t.name), zap.Error(rbErr))
		}
		return WriteResult{}, fmt.Errorf("table %s: %w", t.name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return WriteResult{}, fmt.Errorf("table %s: commit: %w", t.name, err)
	}
	return res, nil
}

// ensure creates the table from sc when it is missing. For an existing table it
// returns the stored schema, or nil when the interactor cannot describe it.
func (t *Table) ensure(sc *schema.SchemaDefinition) (*schema.SchemaDefinition, error) {
	exists, err := t.interactor.CollectionExists(t.name)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	if exists {
		describer, ok := t.interactor.(SchemaDescriber)
		if !ok {
			return nil, nil
		}
		existing, err := describer.DescribeCollection(t.name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.name, err)
		}
		return existing, nil
	}
	_, err = t.withEventEmission("create", CollectionCreateStart, CollectionCreateSuccess, CollectionCreateFailed, sc,
		func() (WriteResult, error) {
			t.logger.Debug("Creating table", zap.String("table", t.name), zap.Strings("fields", sc.FieldNames()))
			return WriteResult{}, t.interactor.CreateCollection(*sc)
		})
	if err != nil {
		return nil, fmt.Errorf("table %s: create: %w", t.name, err)
	}
	return nil, nil
}

// RegisterSubscription registers a table-scoped subscription and returns its id.
func (t *Table) RegisterSubscription(options RegisterSubscriptionOptions) string {
	unsubscribe := t.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	t.mu.Lock()
	t.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	t.mu.Unlock()

	t.emitEvent(createEvent(SubscriptionRegister, "register_subscription", t.name,
		map[string]any{"event": options.Event, "label": options.Label},
		map[string]any{"subscriptionId": id}, nil, nil, nil, time.Time{}))
	return id
}

// UnregisterSubscription removes a subscription. Unknown ids are ignored.
func (t *Table) UnregisterSubscription(id string) {
	t.mu.Lock()
	info, ok := t.subscriptions[id]
	delete(t.subscriptions, id)
	t.mu.Unlock()
	if !ok {
		return
	}
	info.Unsubscribe()
	t.emitEvent(createEvent(SubscriptionUnregister, "unregister_subscription", t.name,
		map[string]any{"subscriptionId": id}, nil, nil, nil, nil, time.Time{}))
}

// Subscriptions returns the registered subscriptions ordered by id.
func (t *Table) Subscriptions() []SubscriptionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SubscriptionInfo, 0, len(t.subscriptions))
	for _, info := range t.subscriptions {
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b SubscriptionInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func splitKey(doc map[string]any, pk []string) (map[string]any, []any) {
	key := make([]any, len(pk))
	updates := make(map[string]any, len(doc))
	for k, v := range doc {
		updates[k] = v
	}
	for i, f := range pk {
		key[i] = doc[f]
		delete(updates, f)
	}
	return updates, key
}
