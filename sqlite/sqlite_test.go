package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/persistence"
	"github.com/asaidimu/go-dataopt/core/query"
	"github.com/asaidimu/go-dataopt/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesSchema() *schema.SchemaDefinition {
	return &schema.SchemaDefinition{
		Name: "sales",
		Fields: map[string]*schema.FieldDefinition{
			"id":     {Name: "id", Type: schema.FieldTypeInteger},
			"region": {Name: "region", Type: schema.FieldTypeString},
			"active": {Name: "active", Type: schema.FieldTypeBoolean},
		},
	}
}

func TestSqliteQuery_GenerateSelectSQL(t *testing.T) {
	g, err := NewSqliteQuery(salesSchema())
	require.NoError(t, err)

	dsl := query.NewQueryBuilder().
		Where("region").Eq("north").
		Where("active").Eq(true).
		OrderByDesc("id").
		Limit(10).
		Offset(5).
		Build()
	sql, params, err := g.GenerateSelectSQL(&dsl)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "sales" WHERE ("region" = ? AND "active" = ?) ORDER BY "id" DESC LIMIT 10 OFFSET 5;`, sql)
	assert.Equal(t, []any{"north", 1}, params)

	dsl = query.NewQueryBuilder().Select("id").Where("id").In().Build()
	sql, params, err = g.GenerateSelectSQL(&dsl)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "sales" WHERE 1=0;`, sql)
	assert.Empty(t, params)

	not := query.CreateFilterGroup(query.LogicalOperatorNot, query.CreateSimpleFilter("id", query.ComparisonOperatorIn, []any{1, 2}))
	sql, params, err = g.GenerateSelectSQL(&query.QueryDSL{Filters: &not})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "sales" WHERE NOT ("id" IN (?,?));`, sql)
	assert.Equal(t, []any{1, 2}, params)

	dsl = query.NewQueryBuilder().Where("region").Eq(nil).Build()
	sql, _, err = g.GenerateSelectSQL(&dsl)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "sales" WHERE "region" IS NULL;`, sql)

	dsl = query.NewQueryBuilder().Where("missing").Eq(1).Build()
	_, _, err = g.GenerateSelectSQL(&dsl)
	assert.ErrorContains(t, err, "not found in schema")
}

func TestSqliteQuery_GenerateWriteSQL(t *testing.T) {
	g, err := NewSqliteQuery(salesSchema())
	require.NoError(t, err)

	sql, params, err := g.GenerateInsertSQL([]map[string]any{
		{"region": "north", "id": 1},
		{"id": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "sales" ("id", "region") VALUES (?, ?), (?, ?) RETURNING *;`, sql)
	assert.Equal(t, []any{1, "north", 2, nil}, params)

	filter := query.KeyFilter([]string{"id"}, []any{1})
	sql, params, err = g.GenerateUpdateSQL(map[string]any{"region": "south", "active": false}, filter)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "sales" SET "active" = ?, "region" = ? WHERE "id" = ?;`, sql)
	assert.Equal(t, []any{0, "south", 1}, params)

	_, _, err = g.GenerateDeleteSQL(nil, false)
	assert.Error(t, err)
	sql, _, err = g.GenerateDeleteSQL(nil, true)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "sales";`, sql)

	_, _, err = g.GenerateUpdateSQL(map[string]any{"active": "maybe"}, nil)
	assert.ErrorContains(t, err, "expected boolean")
}

func TestNewSqliteQuery_Validation(t *testing.T) {
	_, err := NewSqliteQuery(nil)
	assert.Error(t, err)
	_, err = NewSqliteQuery(&schema.SchemaDefinition{})
	assert.Error(t, err)
}

func TestCreateTableSQL(t *testing.T) {
	ds := dataset.FromMaps("sales", []map[string]any{
		{"id": 1, "region": "north", "amount": 10.5},
	})
	sc := schema.InferSchema(ds, "sales", []string{"id"})
	i := NewSQLiteInteractor(nil, nil, &persistence.InteractorOptions{IfNotExists: true, TablePrefix: "t_"}, nil)

	stmt, err := i.CreateTableSQL(*sc)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"t_sales\" (\n"+
		"    \"amount\" REAL,\n"+
		"    \"id\" INTEGER NOT NULL,\n"+
		"    \"region\" TEXT,\n"+
		"    PRIMARY KEY (\"id\")\n"+
		");", stmt)

	idx := i.CreateIndexSQL(`"t_sales"`, schema.IndexDefinition{Fields: []string{"region"}, Type: schema.IndexTypeUnique})
	assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "idx_t_sales_region" ON "t_sales" ("region");`, idx)
	assert.Empty(t, i.CreateIndexSQL(`"t_sales"`, sc.Indexes[0]))
}

func TestFieldTypeOf(t *testing.T) {
	i := NewSQLiteInteractor(nil, nil, nil, nil)
	for _, ft := range []schema.FieldType{
		schema.FieldTypeString, schema.FieldTypeNumber, schema.FieldTypeInteger,
		schema.FieldTypeBoolean, schema.FieldTypeDateTime,
	} {
		assert.Equal(t, ft, fieldTypeOf(i.GetColumnType(ft)), ft)
	}
	assert.Equal(t, schema.FieldTypeNumber, fieldTypeOf("DOUBLE PRECISION"))
	assert.Equal(t, schema.FieldTypeString, fieldTypeOf("VARCHAR(20)"))
}

func TestNamedParameters(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM t", nil},
		{"SELECT * FROM t WHERE a = :region AND b = @month OR c = $year", []string{"region", "month", "year"}},
		{"SELECT * FROM t WHERE a = :x OR b = :x", []string{"x"}},
		{"SELECT ':ignored', \"@col\" FROM t WHERE a = :real", []string{"real"}},
		{"SELECT a::text FROM t WHERE b = ?1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, namedParameters(tt.sql))
		})
	}
}

func openMemory(t *testing.T) *Databases {
	t.Helper()
	dbs := NewDatabases(nil, nil)
	require.NoError(t, dbs.Open("main", ":memory:"))
	t.Cleanup(func() { _ = dbs.Close() })
	return dbs
}

func TestDatabases_SinkAndSources(t *testing.T) {
	ctx := context.Background()
	dbs := openMemory(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	sales := dataset.New("sales", []dataset.Row{
		{"id": dataset.Number(1), "region": dataset.String("north"), "amount": dataset.Number(10), "open": dataset.Bool(true), "day": dataset.Date(day)},
		{"id": dataset.Number(2), "region": dataset.String("south"), "amount": dataset.Number(20), "open": dataset.Bool(false), "day": dataset.Date(day)},
		{"id": dataset.Number(3), "region": dataset.String("north"), "amount": dataset.Number(5), "open": dataset.Bool(true), "day": dataset.Date(day)},
	})

	sink, err := dbs.Sink("main", "sales", []string{"id"})
	require.NoError(t, err)
	res, err := persistence.WriteDataSet(ctx, sink, "", sales)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Inserted)

	merged, err := persistence.WriteDataSet(ctx, sink, "update", dataset.New("sales", []dataset.Row{
		{"id": dataset.Number(2), "amount": dataset.Number(25)},
		{"id": dataset.Number(4), "region": dataset.String("east"), "amount": dataset.Number(1)},
	}))
	require.NoError(t, err)
	assert.Equal(t, persistence.WriteResult{Updated: 1, Inserted: 1}, merged)

	filter := query.CreateSimpleFilter("region", query.ComparisonOperatorEq, ":region")
	src, err := dbs.TableSource("main", "north", "sales", &query.QueryDSL{
		Filters: &filter,
		Sort:    query.ParseSort("id desc"),
	})
	require.NoError(t, err)
	north, err := src.Load(ctx, map[string]any{"region": "north"})
	require.NoError(t, err)
	require.Equal(t, 2, north.RowCount())
	assert.Equal(t, "north", north.Name)
	assert.Equal(t, []string{"id"}, north.Dimensions)
	assert.True(t, dataset.Equal(dataset.Number(3), north.Rows[0].Get("id")))
	assert.Equal(t, dataset.Bool(true), north.Rows[0].Get("open"))
	assert.True(t, dataset.Equal(dataset.Date(day), north.Rows[0].Get("day")))

	qs, err := dbs.QuerySource("main", "totals",
		"SELECT region, SUM(amount) AS total FROM sales WHERE region = :region OR :region IS NULL GROUP BY region ORDER BY region")
	require.NoError(t, err)
	totals, err := qs.Load(ctx, map[string]any{"region": "south"})
	require.NoError(t, err)
	require.Equal(t, 1, totals.RowCount())
	total, ok := totals.Rows[0].Get("total").AsNumber()
	require.True(t, ok)
	assert.Equal(t, float64(25), total)

	all, err := qs.Load(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all.RowCount())
}

func TestDatabases_SaveReplacesAndAppend(t *testing.T) {
	ctx := context.Background()
	dbs := openMemory(t)
	sink, err := dbs.Sink("main", "log", nil)
	require.NoError(t, err)

	rows := dataset.FromMaps("log", []map[string]any{{"msg": "a"}, {"msg": "b"}})
	_, err = sink.Append(ctx, rows)
	require.NoError(t, err)
	_, err = sink.Append(ctx, rows)
	require.NoError(t, err)

	src, err := dbs.TableSource("main", "log", "log", nil)
	require.NoError(t, err)
	ds, err := src.Load(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.RowCount())

	res, err := sink.Save(ctx, dataset.FromMaps("log", []map[string]any{{"msg": "c"}}))
	require.NoError(t, err)
	assert.Equal(t, persistence.WriteResult{Deleted: 4, Inserted: 1}, res)

	_, err = sink.Append(ctx, dataset.FromMaps("log", []map[string]any{{"msg": "d", "level": 1}}))
	assert.ErrorIs(t, err, persistence.ErrSchemaMismatch)
	assert.ErrorContains(t, err, "level")

	_, err = sink.Merge(ctx, rows)
	assert.ErrorIs(t, err, persistence.ErrNoPrimaryKey)
}

func TestDatabases_Errors(t *testing.T) {
	dbs := openMemory(t)
	_, err := dbs.Sink("other", "t", nil)
	assert.ErrorIs(t, err, ErrUnknownDatabase)
	_, err = dbs.QuerySource("other", "x", "SELECT 1")
	assert.ErrorIs(t, err, ErrUnknownDatabase)
	assert.Equal(t, []string{"main"}, dbs.Codes())

	src, err := dbs.TableSource("main", "missing", "missing", nil)
	require.NoError(t, err)
	ds, err := src.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ds)

	bad, err := dbs.QuerySource("main", "bad", "SELECT * FROM nowhere")
	require.NoError(t, err)
	_, err = bad.Load(context.Background(), nil)
	assert.ErrorContains(t, err, "source bad")
}

func TestInteractor_TransactionGuards(t *testing.T) {
	dbs := openMemory(t)
	i, err := dbs.Interactor("main")
	require.NoError(t, err)
	assert.Error(t, i.Commit(context.Background()))
	assert.Error(t, i.Rollback(context.Background()))

	tx, err := i.StartTransaction(context.Background())
	require.NoError(t, err)
	_, err = tx.StartTransaction(context.Background())
	assert.Error(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
}
