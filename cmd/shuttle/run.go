package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle"
	"github.com/wovenlab/shuttle/pkg/agent/openai"
	"github.com/wovenlab/shuttle/pkg/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one complete run of the machine",
	Long: `Loads the machine definition and executes it to completion, steered by
an OpenAI decision agent (requires OPENAI_API_KEY).`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMachine(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("model", "", "Model for the decision agent (default: GPT-4o mini)")
	runCmd.Flags().String("run-id", "", "Run identifier (generated when omitted)")
	runCmd.Flags().Int("step-limit", 0, "Override the fail-closed step ceiling")
	runCmd.Flags().Duration("timeout", 0, "Wall-clock budget for the run (0 = none)")
	runCmd.Flags().Bool("json", false, "Print the final state as JSON")
}

func runMachine(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("machine")
	model, _ := cmd.Flags().GetString("model")
	runID, _ := cmd.Flags().GetString("run-id")
	stepLimit, _ := cmd.Flags().GetInt("step-limit")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	jsonOut, _ := cmd.Flags().GetBool("json")

	logger := newLogger(cmd)

	var machineOpts []shuttle.Option
	machineOpts = append(machineOpts, shuttle.WithLogger(logger))
	if stepLimit > 0 {
		machineOpts = append(machineOpts, shuttle.WithStepLimit(stepLimit))
	}

	machine, err := shuttle.New(path, machineOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runnerOpts []runner.Option
	runnerOpts = append(runnerOpts, runner.WithLogger(logger))
	if timeout > 0 {
		runnerOpts = append(runnerOpts, runner.WithTimeout(timeout))
	}

	var runOpts []shuttle.RunOption
	if runID != "" {
		runOpts = append(runOpts, shuttle.WithRunID(runID))
	}

	decider := openai.New(openai.Config{Model: model})
	started := time.Now()
	final, err := runner.New(machine, runnerOpts...).Run(ctx, decider, runOpts...)
	if err != nil {
		if final != nil && jsonOut {
			printState(final)
		}
		return err
	}

	if jsonOut {
		return printState(final)
	}
	fmt.Printf("Run %s finished at node '%s' after %d step(s) in %s\n",
		final.RunID, final.CurrentNode, final.StepCount, time.Since(started).Round(time.Millisecond))
	return nil
}

func printState(s any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
