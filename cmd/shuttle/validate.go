package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the machine definition for consistency",
	Long: `Loads the machine definition and runs the full static validation pass:
referential consistency, start node resolution, node kinds, terminal
nodes and edge condition syntax.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("machine")
		if len(args) > 0 {
			path = args[0]
		}

		machine, err := shuttle.New(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := machine.Validate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Machine definition is valid.")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
