package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{"id": Number(1), "name": String("a")},
		{"id": Number(2), "name": String("b")},
	}
}

func TestNewBizModel(t *testing.T) {
	assert.Equal(t, DefaultName, NewBizModel("").Name())
	assert.Equal(t, "sales", NewBizModel("sales").Name())
	assert.Nil(t, NewBizModel("x").FetchDataSetByName("missing"))
}

func TestBizModel_AddAndFetch(t *testing.T) {
	m := NewBizModel("m")
	ds := New("orders", sampleRows())
	m.AddDataSet("orders", ds)
	assert.Same(t, ds, m.FetchDataSetByName("orders"))

	replacement := New("orders", nil)
	m.AddDataSet("orders", replacement)
	assert.Same(t, replacement, m.FetchDataSetByName("orders"))
	assert.Equal(t, []string{"orders"}, m.DataSetNames())
}

func TestBizModel_SetMainDataSet(t *testing.T) {
	m := NewBizModel("")
	ds := New("orders", sampleRows())
	m.SetMainDataSet(ds)
	assert.Equal(t, "orders", m.Name())
	assert.Same(t, ds, m.MainDataSet())

	m.SetMainDataSetNamed("other", ds)
	assert.Equal(t, "other", m.Name())
	assert.Same(t, ds, m.FetchDataSetByName("other"))
	assert.Same(t, ds, m.FetchDataSetByName("orders"))
}

func TestBizModel_Tags(t *testing.T) {
	m := NewBizModel("m")
	m.PutTag("region", "north")
	m.PutTag("year", 2024)
	assert.Equal(t, String("north"), m.ModelTag()["region"])
	assert.Equal(t, Number(2024), m.ModelTag()["year"])

	m.SetModelTag(map[string]Value{"a": Bool(true)})
	assert.Len(t, m.ModelTag(), 1)
}

func TestBizModel_Select(t *testing.T) {
	m := NewBizModel("m")
	m.PutTag("k", "v")
	m.AddDataSet("a", New("a", sampleRows()))
	m.AddDataSet("b", New("b", sampleRows()))

	sub := m.Select("a", "missing")
	assert.Equal(t, []string{"a"}, sub.DataSetNames())
	assert.Equal(t, String("v"), sub.ModelTag()["k"])

	sub.FetchDataSetByName("a").Rows[0]["name"] = String("changed")
	assert.Equal(t, String("a"), m.FetchDataSetByName("a").Rows[0]["name"])
}

func TestBizModel_Export(t *testing.T) {
	m := NewBizModel("m")
	m.AddDataSet("many", New("many", sampleRows()))
	m.AddDataSet("one", New("one", []Row{{"total": Number(3)}}))
	m.AddDataSet("empty", New("empty", nil))
	m.PutTag("year", 2024)

	full := m.Export(false)
	assert.NotContains(t, full, "empty")
	assert.Len(t, full["one"], 1)
	assert.Contains(t, full, TagKey)

	compact := m.Export(true)
	assert.Equal(t, map[string]any{"total": 3.0}, compact["one"])
	assert.Len(t, compact["many"], 2)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"many":[{"id":1,"name":"a"},{"id":2,"name":"b"}],
		"one":[{"total":3}],
		"modelTag":{"year":2024}
	}`, string(raw))
}

func TestParseBizModel(t *testing.T) {
	input := `{
		"orders": [{"id": 1}, {"id": 2}],
		"summary": {"total": 10},
		"codes": ["a", "b", "c"],
		"named": {"dataSetName": "named", "dimensions": ["id"], "sorted": true, "data": [{"id": 5}]},
		"modelTag": {"region": "north"}
	}`
	m, err := ParseBizModel("m", []byte(input))
	require.NoError(t, err)

	assert.Equal(t, 2, m.FetchDataSetByName("orders").RowCount())
	assert.Equal(t, Number(10), m.FetchDataSetByName("summary").Rows[0]["total"])

	codes := m.FetchDataSetByName("codes")
	require.Equal(t, 3, codes.RowCount())
	assert.Equal(t, String("b"), codes.Rows[1]["value"])

	named := m.FetchDataSetByName("named")
	assert.Equal(t, []string{"id"}, named.Dimensions)
	assert.True(t, named.Sorted)
	assert.Equal(t, 1, named.RowCount())

	assert.Equal(t, String("north"), m.ModelTag()["region"])
	assert.NotContains(t, m.DataSetNames(), TagKey)
}

func TestParseBizModel_TopLevelArray(t *testing.T) {
	m, err := ParseBizModel("rows", []byte(`[{"a":1},{"a":2}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, m.MainDataSet().RowCount())
}

func TestParseBizModel_Errors(t *testing.T) {
	_, err := ParseBizModel("bad", []byte(`{`))
	assert.Error(t, err)

	_, err = ParseBizModel("bad", []byte(`42`))
	assert.Error(t, err)

	_, err = ParseBizModel("bad", []byte(`{"modelTag": [1]}`))
	assert.Error(t, err)
}

func TestDataSet_Helpers(t *testing.T) {
	var nilDS *DataSet
	assert.True(t, nilDS.IsEmpty())
	_, ok := nilDS.FirstRow()
	assert.False(t, ok)

	ds := New("", sampleRows())
	assert.Equal(t, DefaultName, ds.Name)
	first, ok := ds.FirstRow()
	require.True(t, ok)
	assert.Equal(t, Number(1), first["id"])
	assert.Equal(t, []string{"id", "name"}, ds.Fields())

	clone := ds.Clone("copy")
	clone.Rows[0]["id"] = Number(99)
	assert.Equal(t, Number(1), ds.Rows[0]["id"])
	assert.Equal(t, "copy", clone.Name)
}

func TestDataSet_UnmarshalJSON(t *testing.T) {
	var ds DataSet
	require.NoError(t, json.Unmarshal([]byte(`[{"a":1}]`), &ds))
	assert.Equal(t, DefaultName, ds.Name)
	assert.Equal(t, 1, ds.RowCount())

	var full DataSet
	require.NoError(t, json.Unmarshal([]byte(`{"dataSetName":"x","data":[{"a":1},{"a":2}]}`), &full))
	assert.Equal(t, "x", full.Name)
	assert.Equal(t, 2, full.RowCount())
}
