package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/pipeline"
	"github.com/asaidimu/go-dataopt/core/source"
	"github.com/spf13/cobra"
)

// NewExplainCmd creates the command that prints the dataset lineage of a step
// list without running it.
func NewExplainCmd(outputFn func() *Output) *cobra.Command {
	var stepsPath, packetPath, mainName string
	var dot bool

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show which datasets each step reads and writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			var steps pipeline.StepList
			switch {
			case packetPath != "":
				packet, err := source.ReadPacket(packetPath)
				if err != nil {
					return err
				}
				steps = packet.StepList()
				if mainName == "" {
					mainName = packetMain(packet)
				}
			case stepsPath != "":
				var err error
				if steps, err = readSteps(stepsPath); err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --steps or --packet is required")
			}
			if mainName == "" {
				mainName = dataset.DefaultName
			}

			lineage, err := pipeline.BuildLineage(steps, mainName)
			if err != nil {
				return err
			}
			if dot {
				return lineage.WriteDOT(out.Writer())
			}

			inputs, err := lineage.Inputs()
			if err != nil {
				return err
			}
			edges := lineage.Edges()
			rows := make([][]string, len(edges))
			for i, e := range edges {
				rows[i] = []string{strconv.Itoa(e.Step), e.Operation, e.From, e.To}
			}
			if err := out.Print([]string{"STEP", "OPERATION", "FROM", "TO"}, rows,
				map[string]any{"inputs": inputs, "edges": edges}); err != nil {
				return err
			}
			out.Info("Inputs: " + strings.Join(inputs, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&stepsPath, "steps", "", "Step list file")
	cmd.Flags().StringVar(&packetPath, "packet", "", "Packet file whose steps to explain")
	cmd.Flags().StringVar(&mainName, "main", "", "Main dataset name used as the default source")
	cmd.Flags().BoolVar(&dot, "dot", false, "Print the lineage graph in Graphviz DOT form")

	return cmd
}

// packetMain returns the name the model of packet will carry once loaded.
func packetMain(packet *source.Packet) string {
	for _, def := range packet.DataSets {
		if def.Main {
			return def.Name
		}
	}
	if packet.Name == "" && len(packet.DataSets) == 1 {
		return packet.DataSets[0].Name
	}
	return packet.Name
}
