package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle"
	presenter "github.com/wovenlab/shuttle/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the machine graph visualization",
	Long:  `Loads the machine definition and outputs a Mermaid diagram (graph TD).`,
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
		g, err := machine.Definition(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(presenter.GenerateMermaid(g, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
