package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "shuttle",
	Short: "Shuttle is an execution runtime for agent-driven workflow machines",
	Long: `Shuttle runs workflow machines: graphs of nodes and guarded transitions,
steered step by step by a decision agent choosing from generated tools.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("machine", "m", "machine.yaml", "Path to the machine definition")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	name, _ := cmd.Flags().GetString("log-level")
	level := logging.ParseLevel(name)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}
