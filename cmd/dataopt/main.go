// dataopt runs declarative dataset transformation pipelines.
//
// Usage:
//
//	dataopt [--verbose] [--json] <command> [flags]
//
// Commands:
//
//	run      Load a packet, run its steps and print the model
//	explain  Show the dataset lineage of a step list
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asaidimu/go-dataopt/internal/cli"
)

// version is set through ldflags at build time.
var version = "dev"

func main() {
	var verbose bool
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "dataopt",
		Short:         "dataopt - declarative dataset pipelines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print tables as JSON")

	var logger *zap.Logger
	loggerFn := func() *zap.Logger {
		if logger != nil {
			return logger
		}
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			logger = zap.NewNop()
		}
		return logger
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(loggerFn, outputFn),
		cli.NewExplainCmd(outputFn),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
