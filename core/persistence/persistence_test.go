package persistence

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryDB is a DatabaseInteractor keeping tables in memory. Transactions
// snapshot every table and restore the snapshot on rollback.
type memoryDB struct {
	mu         sync.Mutex
	tables     map[string][]schema.Document
	failInsert bool
	snapshot   map[string][]schema.Document
	inTx       bool
	commits    int
	rollbacks  int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{tables: map[string][]schema.Document{}}
}

func (m *memoryDB) SelectDocuments(_ context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error) {
	var out []schema.Document
	for _, doc := range m.tables[sc.Name] {
		if matches(doc, dsl.Filters) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memoryDB) UpdateDocuments(_ context.Context, sc *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error) {
	var n int64
	for _, doc := range m.tables[sc.Name] {
		if matches(doc, filters) {
			maps.Copy(doc, updates)
			n++
		}
	}
	return n, nil
}

func (m *memoryDB) InsertDocuments(_ context.Context, sc *schema.SchemaDefinition, records []map[string]any) ([]schema.Document, error) {
	if m.failInsert {
		return nil, errors.New("disk full")
	}
	out := make([]schema.Document, 0, len(records))
	for _, r := range records {
		doc := schema.Document(maps.Clone(r))
		m.tables[sc.Name] = append(m.tables[sc.Name], doc)
		out = append(out, doc)
	}
	return out, nil
}

func (m *memoryDB) DeleteDocuments(_ context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error) {
	if filters == nil && !unsafeDelete {
		return 0, errors.New("refusing unfiltered delete")
	}
	var kept []schema.Document
	var n int64
	for _, doc := range m.tables[sc.Name] {
		if matches(doc, filters) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	m.tables[sc.Name] = kept
	return n, nil
}

func (m *memoryDB) CreateCollection(sc schema.SchemaDefinition) error {
	m.tables[sc.Name] = []schema.Document{}
	return nil
}

func (m *memoryDB) DropCollection(name string) error {
	delete(m.tables, name)
	return nil
}

func (m *memoryDB) CollectionExists(name string) (bool, error) {
	_, ok := m.tables[name]
	return ok, nil
}

func (m *memoryDB) StartTransaction(context.Context) (DatabaseInteractor, error) {
	m.snapshot = make(map[string][]schema.Document, len(m.tables))
	for name, docs := range m.tables {
		copied := make([]schema.Document, len(docs))
		for i, d := range docs {
			copied[i] = maps.Clone(d)
		}
		m.snapshot[name] = copied
	}
	m.inTx = true
	return m, nil
}

func (m *memoryDB) Commit(context.Context) error {
	m.inTx = false
	m.commits++
	return nil
}

func (m *memoryDB) Rollback(context.Context) error {
	m.tables = m.snapshot
	m.inTx = false
	m.rollbacks++
	return nil
}

// matches understands the equality filters produced by query.KeyFilter.
func matches(doc schema.Document, f *query.QueryFilter) bool {
	if f == nil {
		return true
	}
	if f.Condition != nil {
		return fmt.Sprint(doc[f.Condition.Field]) == fmt.Sprint(f.Condition.Value)
	}
	for _, c := range f.Group.Conditions {
		if !matches(doc, &c) {
			return false
		}
	}
	return true
}

func sales() *dataset.DataSet {
	return dataset.FromMaps("sales", []map[string]any{
		{"id": 1, "region": "north", "amount": 10},
		{"id": 2, "region": "south", "amount": 20},
	})
}

func TestTable_AppendCreatesTable(t *testing.T) {
	db := newMemoryDB()
	table, err := NewTable(db, "sales", nil, nil)
	require.NoError(t, err)

	res, err := table.Append(context.Background(), sales())
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Inserted: 2}, res)

	res, err = table.Append(context.Background(), sales())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted)
	assert.Len(t, db.tables["sales"], 4)
	assert.Equal(t, 2, db.commits)
}

func TestTable_AppendEmptyIsNoop(t *testing.T) {
	db := newMemoryDB()
	table, err := NewTable(db, "sales", nil, nil)
	require.NoError(t, err)

	res, err := table.Append(context.Background(), dataset.New("sales", nil))
	require.NoError(t, err)
	assert.Equal(t, WriteResult{}, res)
	_, exists := db.tables["sales"]
	assert.False(t, exists)
}

func TestTable_Merge(t *testing.T) {
	db := newMemoryDB()
	table, err := NewTable(db, "sales", []string{"id"}, nil)
	require.NoError(t, err)
	_, err = table.Save(context.Background(), sales())
	require.NoError(t, err)

	update := dataset.FromMaps("sales", []map[string]any{
		{"id": 2, "region": "south", "amount": 25},
		{"id": 3, "region": "east", "amount": 5},
	})
	res, err := table.Merge(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Updated: 1, Inserted: 1}, res)

	rows := db.tables["sales"]
	require.Len(t, rows, 3)
	assert.Equal(t, float64(25), rows[1]["amount"])
	assert.Equal(t, "east", rows[2]["region"])
}

func TestTable_MergeKeyOnlyRows(t *testing.T) {
	db := newMemoryDB()
	table, err := NewTable(db, "ids", []string{"id"}, nil)
	require.NoError(t, err)

	ids := dataset.FromMaps("ids", []map[string]any{{"id": 1}, {"id": 2}})
	_, err = table.Merge(context.Background(), ids)
	require.NoError(t, err)
	res, err := table.Merge(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, WriteResult{}, res)
	assert.Len(t, db.tables["ids"], 2)
}

func TestTable_MergeWithoutPrimaryKey(t *testing.T) {
	table, err := NewTable(newMemoryDB(), "sales", nil, nil)
	require.NoError(t, err)

	_, err = table.Merge(context.Background(), sales())
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestTable_SaveReplaces(t *testing.T) {
	db := newMemoryDB()
	table, err := NewTable(db, "sales", nil, nil)
	require.NoError(t, err)
	_, err = table.Append(context.Background(), sales())
	require.NoError(t, err)

	res, err := table.Save(context.Background(), dataset.FromMaps("sales", []map[string]any{{"id": 9}}))
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Deleted: 2, Inserted: 1}, res)
	assert.Len(t, db.tables["sales"], 1)

	res, err = table.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Deleted: 1}, res)
	assert.Empty(t, db.tables["sales"])
}

func TestTable_FailedWriteRollsBack(t *testing.T) {
	db := newMemoryDB()
	table, err := NewTable(db, "sales", nil, nil)
	require.NoError(t, err)
	_, err = table.Append(context.Background(), sales())
	require.NoError(t, err)

	db.failInsert = true
	_, err = table.Save(context.Background(), sales())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, db.rollbacks)
	assert.Len(t, db.tables["sales"], 2)
}

func TestTable_Events(t *testing.T) {
	table, err := NewTable(newMemoryDB(), "sales", nil, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var received []PersistenceEvent
	record := func(_ context.Context, e PersistenceEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
		return nil
	}
	id := table.RegisterSubscription(RegisterSubscriptionOptions{Event: DocumentAppendSuccess, Callback: record})
	table.RegisterSubscription(RegisterSubscriptionOptions{Event: CollectionCreateSuccess, Callback: record})
	assert.Len(t, table.Subscriptions(), 2)

	_, err = table.Append(context.Background(), sales())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	types := map[PersistenceEventType]PersistenceEvent{}
	for _, e := range received {
		types[e.Type] = e
	}
	mu.Unlock()
	require.Contains(t, types, DocumentAppendSuccess)
	ev := types[DocumentAppendSuccess]
	assert.Equal(t, "append", ev.Operation)
	assert.Equal(t, "sales", *ev.Collection)
	assert.Equal(t, WriteResult{Inserted: 2}, ev.Output)
	assert.Equal(t, map[string]any{"dataSet": "sales", "rows": 2}, ev.Input)
	assert.NotNil(t, ev.Duration)

	table.UnregisterSubscription(id)
	table.UnregisterSubscription("unknown")
	assert.Len(t, table.Subscriptions(), 1)
}

func TestNewTable_RequiresName(t *testing.T) {
	_, err := NewTable(newMemoryDB(), "", nil, nil)
	assert.Error(t, err)
}

type recordingSink struct {
	called string
}

func (s *recordingSink) Append(context.Context, *dataset.DataSet) (WriteResult, error) {
	s.called = "append"
	return WriteResult{}, nil
}

func (s *recordingSink) Merge(context.Context, *dataset.DataSet) (WriteResult, error) {
	s.called = "merge"
	return WriteResult{}, nil
}

func (s *recordingSink) Save(context.Context, *dataset.DataSet) (WriteResult, error) {
	s.called = "save"
	return WriteResult{}, nil
}

func TestWriteDataSet(t *testing.T) {
	tests := []struct {
		writerType string
		want       string
	}{
		{"append", "append"},
		{"APPEND", "append"},
		{"merge", "merge"},
		{"update", "merge"},
		{"save", "save"},
		{"", "save"},
		{"replace", "save"},
	}
	for _, tt := range tests {
		t.Run(tt.writerType, func(t *testing.T) {
			sink := &recordingSink{}
			_, err := WriteDataSet(context.Background(), sink, tt.writerType, sales())
			require.NoError(t, err)
			assert.Equal(t, tt.want, sink.called)
		})
	}
}

func TestSourceFunc(t *testing.T) {
	src := SourceFunc(func(_ context.Context, params map[string]any) (*dataset.DataSet, error) {
		return dataset.FromMaps("p", []map[string]any{params}), nil
	})
	ds, err := src.Load(context.Background(), map[string]any{"region": "north"})
	require.NoError(t, err)
	assert.Equal(t, "north", ds.Rows[0].Get("region").AsString())
}

// describingDB remembers the schema each table was created with.
type describingDB struct {
	*memoryDB
	schemas map[string]*schema.SchemaDefinition
}

func (d *describingDB) CreateCollection(sc schema.SchemaDefinition) error {
	d.schemas[sc.Name] = &sc
	return d.memoryDB.CreateCollection(sc)
}

func (d *describingDB) DescribeCollection(name string) (*schema.SchemaDefinition, error) {
	sc, ok := d.schemas[name]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", name)
	}
	return sc, nil
}

func TestTable_ValidatesExistingTable(t *testing.T) {
	ctx := context.Background()
	db := &describingDB{memoryDB: newMemoryDB(), schemas: map[string]*schema.SchemaDefinition{}}
	table, err := NewTable(db, "sales", []string{"id"}, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var failed []PersistenceEvent
	table.RegisterSubscription(RegisterSubscriptionOptions{
		Event: DocumentAppendFailed,
		Callback: func(_ context.Context, e PersistenceEvent) error {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, e)
			return nil
		},
	})

	_, err = table.Save(ctx, sales())
	require.NoError(t, err)

	_, err = table.Append(ctx, dataset.FromMaps("sales", []map[string]any{
		{"id": 3, "region": "east", "amount": 2.5},
	}))
	require.ErrorIs(t, err, ErrSchemaMismatch)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, schema.IssueTypeMismatch, verr.Issues[0].Code)
	assert.Equal(t, "rows[0].amount", verr.Issues[0].Path)
	assert.Len(t, db.tables["sales"], 2)

	_, err = table.Append(ctx, dataset.FromMaps("sales", []map[string]any{{"region": "west"}}))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, schema.IssueRequiredFieldMissing, verr.Issues[0].Code)

	// Merges validate loosely and coerce numeric text.
	res, err := table.Merge(ctx, dataset.FromMaps("sales", []map[string]any{{"id": 2, "amount": "30"}}))
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Updated: 1}, res)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for _, e := range failed {
		require.NotEmpty(t, e.Issues)
		require.NotNil(t, e.Error)
		assert.Contains(t, *e.Error, "rows do not match the table schema")
	}
}
