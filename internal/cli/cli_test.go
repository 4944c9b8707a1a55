package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPacket = `{
	"name": "shop",
	"modelTag": {"minimum": 10},
	"dataSets": [
		{"name": "sales", "type": "inline", "data": [
			{"id": 1, "region": "north", "amount": 5},
			{"id": 2, "region": "north", "amount": 20},
			{"id": 3, "region": "south", "amount": 30}
		]},
		{"name": "regions", "type": "csv", "path": "regions.csv"}
	],
	"steps": [
		{"operation": "filter", "source": "sales", "target": "big", "filter": "amount > 10"},
		{"operation": "stat", "source": "big", "target": "totals", "groupBy": "region", "stat": {"total": "sum(amount)"}},
		{"operation": "join", "source": "totals", "source2": "regions", "primaryKey": "region"},
		{"operation": "persistence", "source": "totals", "databaseCode": "main", "tableName": "totals"}
	]
}`

type harness struct {
	dir    string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.write(t, "packet.json", testPacket)
	h.write(t, "regions.csv", "region,manager\nnorth,ann\nsouth,bob\n")
	return h
}

func (h *harness) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

func (h *harness) execute(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(h.stdout)
	cmd.SetErr(h.stderr)
	return cmd.Execute()
}

func (h *harness) runCmd(jsonMode bool) *cobra.Command {
	return NewRunCmd(zap.NewNop, func() *Output { return NewOutputTo(jsonMode, h.stdout, h.stderr) })
}

func (h *harness) explainCmd(jsonMode bool) *cobra.Command {
	return NewExplainCmd(func() *Output { return NewOutputTo(jsonMode, h.stdout, h.stderr) })
}

func TestRunCmd(t *testing.T) {
	h := newHarness(t)
	err := h.execute(h.runCmd(false),
		"--packet", h.path("packet.json"),
		"--db", "main=:memory:",
		"--datasets", "totals,big",
		"--compact")
	require.NoError(t, err)

	var model map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &model))
	assert.Len(t, model["big"], 2)
	assert.Equal(t, map[string]any{"minimum": 10.0}, model["modelTag"])

	totals, ok := model["totals"].([]any)
	require.True(t, ok, "totals should be an array")
	require.Len(t, totals, 2)
	first := totals[0].(map[string]any)
	assert.Equal(t, "north", first["region"])
	assert.Equal(t, 20.0, first["total"])
	assert.Equal(t, "ann", first["manager"])
	assert.NotContains(t, model, "sales")
}

func TestRunCmd_Report(t *testing.T) {
	h := newHarness(t)
	err := h.execute(h.runCmd(true), "--packet", h.path("packet.json"), "--db", "main=:memory:", "--report")
	require.NoError(t, err)

	var report struct {
		RunID string `json:"runId"`
		Steps []struct {
			Operation string `json:"operation"`
			Status    string `json:"status"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Steps, 4)
	for _, s := range report.Steps {
		assert.Equal(t, "executed", s.Status, s.Operation)
	}
}

func TestRunCmd_StepsAndModelFiles(t *testing.T) {
	h := newHarness(t)
	h.write(t, "model.json", `{"extra": [{"x": 1}, {"x": 2}], "modelTag": {"who": "me"}}`)
	h.write(t, "steps.json", `{"steps": [{"operation": "map", "source": "extra", "map": {"y": "x * 10"}}]}`)
	err := h.execute(h.runCmd(false),
		"--model", h.path("model.json"),
		"--steps", h.path("steps.json"))
	require.NoError(t, err)

	var model map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &model))
	assert.Equal(t, []any{map[string]any{"y": 10.0}, map[string]any{"y": 20.0}}, model["extra"])
	assert.Equal(t, map[string]any{"who": "me"}, model["modelTag"])
}

func TestRunCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"no input", nil, "--packet or --model"},
		{"bad database flag", []string{"--model", "x.json", "--db", "main"}, "CODE=PATH"},
		{"persistence without database", []string{"--packet", "packet.json"}, "invalid step"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			args := make([]string, len(tt.args))
			for i, a := range tt.args {
				if filepath.Ext(a) == ".json" {
					a = h.path(a)
				}
				args[i] = a
			}
			err := h.execute(h.runCmd(false), args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestExplainCmd(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.execute(h.explainCmd(false), "--packet", h.path("packet.json")))
		out := h.stdout.String()
		assert.Contains(t, out, "OPERATION")
		assert.Contains(t, out, "main:totals")
		assert.Contains(t, h.stderr.String(), "Inputs: regions, sales")
	})

	t.Run("json", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.execute(h.explainCmd(true), "--packet", h.path("packet.json")))
		var doc struct {
			Inputs []string `json:"inputs"`
			Edges  []any    `json:"edges"`
		}
		require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &doc))
		assert.Equal(t, []string{"regions", "sales"}, doc.Inputs)
		assert.Len(t, doc.Edges, 4)
	})

	t.Run("dot from steps file", func(t *testing.T) {
		h := newHarness(t)
		steps := h.write(t, "steps.json", `[{"operation": "filter", "target": "big", "filter": "a > 1"}]`)
		require.NoError(t, h.execute(h.explainCmd(false), "--steps", steps, "--main", "orders", "--dot"))
		assert.Contains(t, h.stdout.String(), "digraph")
		assert.Contains(t, h.stdout.String(), "orders")
	})

	t.Run("missing input", func(t *testing.T) {
		h := newHarness(t)
		assert.Error(t, h.execute(h.explainCmd(false)))
	})
}
