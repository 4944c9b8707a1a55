package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/asaidimu/go-dataopt/core/dataset"
	"github.com/asaidimu/go-dataopt/core/pipeline"
	"github.com/asaidimu/go-dataopt/core/source"
	"github.com/asaidimu/go-dataopt/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRunCmd creates the command that loads a packet, runs its steps and prints
// the resulting model.
func NewRunCmd(loggerFn func() *zap.Logger, outputFn func() *Output) *cobra.Command {
	var packetPath, modelPath, stepsPath string
	var databases, datasets []string
	var compact, report bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a packet, run its steps and print the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if packetPath == "" && modelPath == "" {
				return fmt.Errorf("one of --packet or --model is required")
			}
			logger := loggerFn()
			out := outputFn()

			dbs := sqlite.NewDatabases(logger, nil)
			defer dbs.Close()
			for _, spec := range databases {
				code, dsn, ok := strings.Cut(spec, "=")
				if !ok || code == "" || dsn == "" {
					return fmt.Errorf("invalid database %q, expected CODE=PATH", spec)
				}
				if err := dbs.Open(code, dsn); err != nil {
					return err
				}
			}

			packet := &source.Packet{}
			options := source.DefaultLoaderOptions()
			options.Concurrency = concurrency
			if packetPath != "" {
				var err error
				if packet, err = source.ReadPacket(packetPath); err != nil {
					return err
				}
				options.BaseDir = filepath.Dir(packetPath)
			}
			model, err := source.NewLoader(dbs, options, logger).Load(cmd.Context(), packet)
			if err != nil {
				return err
			}
			if modelPath != "" {
				if err := mergeModelFile(model, modelPath); err != nil {
					return err
				}
			}

			steps := packet.StepList()
			if stepsPath != "" {
				if steps, err = readSteps(stepsPath); err != nil {
					return err
				}
			}

			engine, err := pipeline.NewEngine(pipeline.EngineOptions{Registry: pipeline.ExtendedRegistry(dbs)}, logger)
			if err != nil {
				return err
			}
			result, err := engine.Run(cmd.Context(), model, steps)
			if err != nil {
				return err
			}

			if report {
				return printReport(out, result)
			}
			view := model
			if len(datasets) > 0 {
				view = model.Select(datasets...)
			}
			return out.JSON(view.Export(compact))
		},
	}

	cmd.Flags().StringVar(&packetPath, "packet", "", "Packet file defining the datasets to load")
	cmd.Flags().StringVar(&modelPath, "model", "", "JSON file with extra datasets in the model external form")
	cmd.Flags().StringVar(&stepsPath, "steps", "", "Step list file replacing the packet steps")
	cmd.Flags().StringArrayVar(&databases, "db", nil, "SQLite database as CODE=PATH (repeatable)")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Only print these datasets")
	cmd.Flags().BoolVar(&compact, "compact", false, "Print single-row datasets as objects")
	cmd.Flags().BoolVar(&report, "report", false, "Print the step report instead of the model")
	cmd.Flags().IntVar(&concurrency, "concurrency", source.DefaultLoaderOptions().Concurrency, "Sources loaded at once")

	return cmd
}

// mergeModelFile adds the datasets and tags of a model file to model.
func mergeModelFile(model *dataset.BizModel, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	extra, err := dataset.ParseBizModel(model.Name(), data)
	if err != nil {
		return err
	}
	for _, name := range extra.DataSetNames() {
		model.AddDataSet(name, extra.FetchDataSetByName(name))
	}
	for k, v := range extra.ModelTag() {
		model.PutTag(k, v)
	}
	return nil
}

func readSteps(path string) (pipeline.StepList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.StepList{}, fmt.Errorf("read steps: %w", err)
	}
	return pipeline.ParseStepList(data)
}

func printReport(out *Output, report *pipeline.RunReport) error {
	rows := make([][]string, len(report.Steps))
	for i, s := range report.Steps {
		rows[i] = []string{
			strconv.Itoa(s.Index), s.Operation, s.Source, s.Target,
			string(s.Status), strconv.Itoa(s.Rows), s.Reason,
		}
	}
	return out.Print([]string{"STEP", "OPERATION", "SOURCE", "TARGET", "STATUS", "ROWS", "REASON"}, rows, report)
}
