package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TagKey is the key under which model tags appear in the external form.
const TagKey = "modelTag"

// BizModel is a named collection of datasets plus a tag map of contextual
// parameters. It is not safe for concurrent mutation; a pipeline run owns its
// model exclusively.
type BizModel struct {
	name     string
	modelTag map[string]Value
	bizData  map[string]*DataSet
}

// NewBizModel creates an empty model. A blank name becomes "default".
func NewBizModel(name string) *BizModel {
	if name == "" {
		name = DefaultName
	}
	return &BizModel{name: name}
}

// Name returns the model name, which doubles as the name of the main dataset.
func (m *BizModel) Name() string { return m.name }

// FetchDataSetByName returns the named dataset, or nil when absent.
func (m *BizModel) FetchDataSetByName(name string) *DataSet {
	if m.bizData == nil {
		return nil
	}
	return m.bizData[name]
}

// AddDataSet stores ds under name, overwriting any existing entry.
func (m *BizModel) AddDataSet(name string, ds *DataSet) {
	if m.bizData == nil {
		m.bizData = make(map[string]*DataSet)
	}
	m.bizData[name] = ds
}

// SetMainDataSet renames the model to ds.Name and stores ds under it.
func (m *BizModel) SetMainDataSet(ds *DataSet) {
	if ds == nil {
		return
	}
	m.SetMainDataSetNamed(ds.Name, ds)
}

// SetMainDataSetNamed renames the model to name and stores ds under it.
func (m *BizModel) SetMainDataSetNamed(name string, ds *DataSet) {
	if name == "" {
		name = DefaultName
	}
	m.name = name
	m.AddDataSet(name, ds)
}

// MainDataSet returns the dataset stored under the model name.
func (m *BizModel) MainDataSet() *DataSet {
	return m.FetchDataSetByName(m.name)
}

// ModelTag returns the tag map. The returned map is live.
func (m *BizModel) ModelTag() map[string]Value {
	if m.modelTag == nil {
		m.modelTag = make(map[string]Value)
	}
	return m.modelTag
}

// SetModelTag replaces the tag map.
func (m *BizModel) SetModelTag(tags map[string]Value) {
	m.modelTag = tags
}

// PutTag sets a single tag value.
func (m *BizModel) PutTag(key string, value any) {
	m.ModelTag()[key] = FromAny(value)
}

// DataSetNames returns the names of all stored datasets in sorted order.
func (m *BizModel) DataSetNames() []string {
	names := make([]string, 0, len(m.bizData))
	for k := range m.bizData {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Select returns a new model with the same name and tags holding clones of the
// named datasets. Unknown names are skipped.
func (m *BizModel) Select(names ...string) *BizModel {
	out := NewBizModel(m.name)
	for k, v := range m.modelTag {
		out.ModelTag()[k] = v
	}
	for _, n := range names {
		if ds := m.FetchDataSetByName(n); ds != nil {
			out.AddDataSet(n, ds.Clone(""))
		}
	}
	return out
}

// Export renders the model in its external form. Empty datasets are omitted; in
// compact mode a single-row dataset renders as a bare object.
func (m *BizModel) Export(compact bool) map[string]any {
	out := make(map[string]any, len(m.bizData)+1)
	for name, ds := range m.bizData {
		if ds.IsEmpty() {
			continue
		}
		if compact && len(ds.Rows) == 1 {
			out[name] = ds.Rows[0].Document()
			continue
		}
		out[name] = ds.Documents()
	}
	if len(m.modelTag) > 0 {
		tags := make(map[string]any, len(m.modelTag))
		for k, v := range m.modelTag {
			tags[k] = v.Any()
		}
		out[TagKey] = tags
	}
	return out
}

// MarshalJSON encodes the non-compact external form.
func (m *BizModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Export(false))
}

// ParseBizModel decodes the external form of a model.
func ParseBizModel(name string, data []byte) (*BizModel, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model %q: %w", name, err)
	}
	return BizModelFromAny(name, raw)
}

// BizModelFromAny builds a model from a decoded JSON value. A top level object
// maps keys to datasets; a top level array becomes the main dataset.
func BizModelFromAny(name string, raw any) (*BizModel, error) {
	model := NewBizModel(name)
	switch val := raw.(type) {
	case nil:
		return model, nil
	case []any:
		model.AddDataSet(model.name, DataSetFromAny(model.name, val))
		return model, nil
	case map[string]any:
		for key, item := range val {
			if key == TagKey {
				tags, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("model %q: %s must be an object", name, TagKey)
				}
				for k, v := range tags {
					model.PutTag(k, v)
				}
				continue
			}
			model.AddDataSet(key, DataSetFromAny(key, item))
		}
		return model, nil
	default:
		return nil, fmt.Errorf("model %q: unsupported top level value %T", name, raw)
	}
}

// DataSetFromAny casts a decoded JSON value into a dataset. Objects become a
// single row, unless they carry the full {"dataSetName","data"} form. Arrays of
// objects become rows and arrays of scalars become rows with a single "value"
// field. Any other scalar becomes one row with a "value" field.
func DataSetFromAny(name string, raw any) *DataSet {
	switch val := raw.(type) {
	case nil:
		return New(name, nil)
	case *DataSet:
		return val
	case map[string]any:
		if data, ok := val["data"]; ok {
			if _, named := val["dataSetName"]; named {
				ds := DataSetFromAny(name, data)
				if n, ok := val["dataSetName"].(string); ok && n != "" {
					ds.Name = n
				}
				if dims, ok := val["dimensions"].([]any); ok {
					for _, d := range dims {
						ds.Dimensions = append(ds.Dimensions, FromAny(d).AsString())
					}
				}
				if sorted, ok := val["sorted"].(bool); ok {
					ds.Sorted = sorted
				}
				return ds
			}
		}
		return New(name, []Row{RowFromMap(val)})
	case []any:
		rows := make([]Row, 0, len(val))
		for _, item := range val {
			if obj, ok := item.(map[string]any); ok {
				rows = append(rows, RowFromMap(obj))
				continue
			}
			rows = append(rows, Row{"value": FromAny(item)})
		}
		return New(name, rows)
	case []map[string]any:
		return FromMaps(name, val)
	default:
		return New(name, []Row{{"value": FromAny(val)}})
	}
}
