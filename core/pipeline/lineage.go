package pipeline

import (
	"io"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
)

// Edge links a dataset read by a step to what the step writes.
type Edge struct {
	From      string
	To        string
	Operation string
	Step      int
}

// Lineage is the dataset dependency graph of a step list. Vertices are dataset
// names; persistence steps write to vertices named "code:table".
type Lineage struct {
	graph graph.Graph[string, string]
	edges []Edge
}

// BuildLineage walks steps with the same defaults the engine applies, taking
// mainName as the model name. Steps with a blank operation are left out.
func BuildLineage(steps StepList, mainName string) (*Lineage, error) {
	l := &Lineage{graph: graph.New(graph.StringHash, graph.Directed())}
	for i, raw := range steps.Steps {
		op := strings.TrimSpace(raw.Operation)
		if op == "" {
			continue
		}
		step := raw.resolve(mainName)
		if err := l.addVertex(step.Source); err != nil {
			return nil, err
		}
		inputs := []string{step.Source}
		if step.Source2 != "" {
			if err := l.addVertex(step.Source2); err != nil {
				return nil, err
			}
			inputs = append(inputs, step.Source2)
		}

		output := step.Target
		if op == OpPersistence {
			p, _ := step.Params["databaseCode"].(string)
			t, _ := step.Params["tableName"].(string)
			output = p + ":" + t
			if err := l.addVertex(output, graph.VertexAttribute("shape", "box")); err != nil {
				return nil, err
			}
		} else if err := l.addVertex(output); err != nil {
			return nil, err
		}

		for _, in := range inputs {
			if in == output {
				continue
			}
			err := l.graph.AddEdge(in, output, graph.EdgeAttribute("label", op))
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, errors.Wrapf(err, "unable to add edge from %s to %s", in, output)
			}
			l.edges = append(l.edges, Edge{From: in, To: output, Operation: op, Step: i})
		}
	}
	return l, nil
}

func (l *Lineage) addVertex(name string, options ...func(*graph.VertexProperties)) error {
	err := l.graph.AddVertex(name, options...)
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrapf(err, "unable to add vertex %s", name)
	}
	return nil
}

// Edges returns every edge in step order.
func (l *Lineage) Edges() []Edge {
	return append([]Edge(nil), l.edges...)
}

// DataSets lists every vertex, sorted.
func (l *Lineage) DataSets() ([]string, error) {
	adjacency, err := l.graph.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read lineage")
	}
	names := make([]string, 0, len(adjacency))
	for name := range adjacency {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Inputs lists the datasets no step derives from another dataset: the ones a
// loader has to supply.
func (l *Lineage) Inputs() ([]string, error) {
	predecessors, err := l.graph.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read lineage")
	}
	var names []string
	for name, in := range predecessors {
		if len(in) == 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Upstream lists every dataset name depends on, directly or not, sorted.
func (l *Lineage) Upstream(name string) ([]string, error) {
	predecessors, err := l.graph.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read lineage")
	}
	if _, ok := predecessors[name]; !ok {
		return nil, errors.Wrapf(graph.ErrVertexNotFound, "dataset %s", name)
	}
	seen := map[string]bool{}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for parent := range predecessors[current] {
			if !seen[parent] && parent != name {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for parent := range seen {
		out = append(out, parent)
	}
	sort.Strings(out)
	return out, nil
}

// WriteDOT renders the graph in Graphviz DOT form.
func (l *Lineage) WriteDOT(w io.Writer) error {
	return errors.Wrap(draw.DOT(l.graph, w), "unable to draw lineage")
}
