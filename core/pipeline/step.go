package pipeline

import (
	"encoding/json"
	"maps"

	"github.com/asaidimu/go-dataopt/utils"
	"github.com/pkg/errors"
)

// Step is one transformation of a StepList. Operation selects the operator;
// every key besides the four dataset references lands in Params.
type Step struct {
	Operation string
	Source    string
	Source2   string
	Target    string
	Params    map[string]any
}

const (
	keyOperation = "operation"
	keySource    = "source"
	keySource2   = "source2"
	keyTarget    = "target"
)

// NewStep builds a step whose parameters are the JSON form of cfg, which may be
// nil, a map or a struct.
func NewStep(operation, source, target string, cfg any) (Step, error) {
	step := Step{Operation: operation, Source: source, Target: target}
	switch c := cfg.(type) {
	case nil:
	case map[string]any:
		step.Params = maps.Clone(c)
	default:
		params, err := utils.StructToMap(cfg)
		if err != nil {
			return Step{}, errors.Wrapf(err, "unable to build %s step", operation)
		}
		step.Params = params
	}
	return step, nil
}

// Param returns the raw parameter stored under key.
func (s Step) Param(key string) (any, bool) {
	v, ok := s.Params[key]
	return v, ok
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Step) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	str := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}
	*s = Step{
		Operation: str(keyOperation),
		Source:    str(keySource),
		Source2:   str(keySource2),
		Target:    str(keyTarget),
	}
	if len(raw) > 0 {
		s.Params = raw
	}
	return nil
}

// MarshalJSON implements json.Marshaler, flattening Params beside the dataset
// references.
func (s Step) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Params)+4)
	maps.Copy(out, s.Params)
	for key, v := range map[string]string{
		keyOperation: s.Operation,
		keySource:    s.Source,
		keySource2:   s.Source2,
		keyTarget:    s.Target,
	} {
		if v != "" {
			out[key] = v
		}
	}
	return json.Marshal(out)
}

// StepList is the wire form of a pipeline: {"steps": [...]}.
type StepList struct {
	Steps []Step `json:"steps"`
}

// ParseStepList decodes a step list document. A bare JSON array of steps is
// accepted too.
func ParseStepList(data []byte) (StepList, error) {
	var list StepList
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	if err := json.Unmarshal(data, &list.Steps); err != nil {
		return StepList{}, errors.Wrap(err, "unable to parse step list")
	}
	return list, nil
}

// resolve fills in the default dataset references: the source is the model's
// main dataset and the target is the source.
func (s Step) resolve(modelName string) Step {
	if s.Source == "" {
		s.Source = modelName
	}
	if s.Target == "" {
		s.Target = s.Source
	}
	return s
}
