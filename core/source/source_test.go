package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestParsePacket(t *testing.T) {
	p, err := ParsePacket([]byte(`{
		"name": "sales",
		"modelTag": {"region": "north"},
		"dataSets": [
			{"name": "orders", "type": "json", "path": "orders.json"},
			{"name": "totals", "type": "sqlite", "databaseCode": "main", "table": "totals",
			 "filter": {"filters": {"condition": {"field": "region", "operator": "eq", "value": ":region"}}}}
		],
		"steps": [{"operation": "filter", "filter": "amount > 1"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "sales", p.Name)
	require.Len(t, p.DataSets, 2)
	require.NotNil(t, p.DataSets[1].Filter)
	assert.Equal(t, "region", p.DataSets[1].Filter.Filters.Condition.Field)
	assert.Len(t, p.StepList().Steps, 1)

	invalid := []struct {
		name string
		doc  string
		msg  string
	}{
		{"unknown type", `{"dataSets":[{"name":"a","type":"xml"}]}`, "unknown source type"},
		{"missing path", `{"dataSets":[{"name":"a","type":"csv"}]}`, "needs a path"},
		{"missing query", `{"dataSets":[{"name":"a","type":"sqlite","databaseCode":"main"}]}`, "query or a table"},
		{"missing name", `{"dataSets":[{"type":"json","path":"x"}]}`, "name is required"},
		{"duplicate", `{"dataSets":[{"name":"a","type":"json","path":"x"},{"name":"a","type":"json","path":"y"}]}`, "defined twice"},
		{"malformed", `{"dataSets":`, "parse packet"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseCSV(t *testing.T) {
	ds, err := parseCSV("people", strings.NewReader("\ufeffname, age,city\nann,31,paris\nbob,,\ncid,4.5\n"), CSVOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, ds.RowCount())
	assert.Equal(t, []string{"age", "city", "name"}, ds.Fields())
	assert.Equal(t, dataset.Number(31), ds.Rows[0]["age"])
	assert.Equal(t, dataset.String("paris"), ds.Rows[0]["city"])
	assert.True(t, ds.Rows[1]["age"].IsNull())
	assert.True(t, ds.Rows[2]["city"].IsNull())

	raw, err := parseCSV("people", strings.NewReader("id;code\n1;007\n"), CSVOptions{Comma: ';', RawStrings: true})
	require.NoError(t, err)
	assert.Equal(t, dataset.String("007"), raw.Rows[0]["code"])

	empty, err := parseCSV("none", strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.json", `[{"id":1,"region":"north","amount":10},{"id":2,"region":"south","amount":5}]`)
	writeFile(t, dir, "targets.csv", "region,target\nnorth,100\nsouth,50\n")

	dbs := sqlite.NewDatabases(nil, nil)
	defer dbs.Close()
	require.NoError(t, dbs.Open("main", ":memory:"))
	db, err := dbs.DB("main")
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE managers (region TEXT PRIMARY KEY, manager TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO managers VALUES ('north', 'ann'), ('south', 'bob')`)
	require.NoError(t, err)

	packet, err := ParsePacket([]byte(`{
		"name": "sales",
		"modelTag": {"region": "north"},
		"dataSets": [
			{"name": "orders", "type": "json", "path": "orders.json", "main": true},
			{"name": "targets", "type": "csv", "path": "targets.csv"},
			{"name": "manager", "type": "sqlite", "databaseCode": "main",
			 "query": "SELECT manager FROM managers WHERE region = :region"},
			{"name": "managers", "type": "sqlite", "databaseCode": "main", "table": "managers"},
			{"name": "constants", "type": "inline", "data": {"rate": 0.2}},
			{"name": "absent", "type": "json", "path": "missing.json"}
		]
	}`))
	require.NoError(t, err)

	options := DefaultLoaderOptions()
	options.BaseDir = dir
	model, err := NewLoader(dbs, options, nil).Load(context.Background(), packet)
	require.NoError(t, err)

	assert.Equal(t, "orders", model.Name())
	assert.Equal(t, []string{"constants", "manager", "managers", "orders", "targets"}, model.DataSetNames())
	assert.Equal(t, dataset.String("north"), model.ModelTag()["region"])

	assert.Equal(t, 2, model.MainDataSet().RowCount())
	assert.Equal(t, dataset.Number(100), model.FetchDataSetByName("targets").Rows[0]["target"])

	manager := model.FetchDataSetByName("manager")
	require.Equal(t, 1, manager.RowCount())
	assert.Equal(t, "ann", manager.Rows[0].Get("manager").AsString())

	managers := model.FetchDataSetByName("managers")
	assert.Equal(t, 2, managers.RowCount())
	assert.Equal(t, []string{"region"}, managers.Dimensions)

	rate, ok := model.FetchDataSetByName("constants").Rows[0].Get("rate").AsNumber()
	require.True(t, ok)
	assert.Equal(t, 0.2, rate)
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `{"broken":`)
	options := LoaderOptions{BaseDir: dir}

	t.Run("source failure fails the load", func(t *testing.T) {
		packet := &Packet{Name: "p", DataSets: []DataSetDefinition{{Name: "bad", Type: TypeJSON, Path: "bad.json"}}}
		_, err := NewLoader(nil, options, nil).Load(context.Background(), packet)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load dataset bad")
	})

	t.Run("sqlite without databases", func(t *testing.T) {
		packet := &Packet{DataSets: []DataSetDefinition{{Name: "q", Type: TypeSQLite, DatabaseCode: "main", Query: "SELECT 1"}}}
		_, err := NewLoader(nil, options, nil).Load(context.Background(), packet)
		assert.ErrorContains(t, err, "no database is configured")
	})

	t.Run("unknown database code", func(t *testing.T) {
		packet := &Packet{DataSets: []DataSetDefinition{{Name: "q", Type: TypeSQLite, DatabaseCode: "nope", Query: "SELECT 1"}}}
		_, err := NewLoader(sqlite.NewDatabases(nil, nil), options, nil).Load(context.Background(), packet)
		assert.ErrorIs(t, err, sqlite.ErrUnknownDatabase)
	})
}

func TestLoader_ImplicitMain(t *testing.T) {
	packet := &Packet{DataSets: []DataSetDefinition{{Name: "only", Type: TypeInline, Data: []byte(`[{"a":1}]`)}}}
	model, err := NewLoader(nil, DefaultLoaderOptions(), nil).Load(context.Background(), packet)
	require.NoError(t, err)
	assert.Equal(t, "only", model.Name())
	assert.Equal(t, 1, model.MainDataSet().RowCount())
}

func TestLoader_CSVRawStrings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zips.csv", "city;zip\nbond;007\n")

	packet, err := ParsePacket([]byte(`{
		"dataSets": [
			{"name": "raw", "type": "csv", "path": "zips.csv", "delimiter": ";", "rawStrings": true},
			{"name": "typed", "type": "csv", "path": "zips.csv", "delimiter": ";"}
		]
	}`))
	require.NoError(t, err)
	require.True(t, packet.DataSets[0].RawStrings)

	model, err := NewLoader(nil, LoaderOptions{BaseDir: dir}, nil).Load(context.Background(), packet)
	require.NoError(t, err)
	assert.Equal(t, dataset.String("007"), model.FetchDataSetByName("raw").Rows[0]["zip"])
	assert.Equal(t, dataset.Number(7), model.FetchDataSetByName("typed").Rows[0]["zip"])
}
