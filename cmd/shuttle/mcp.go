package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle"
	mcpadapter "github.com/wovenlab/shuttle/pkg/adapters/mcp"
	"github.com/wovenlab/shuttle/pkg/adapters/memory"
	"github.com/wovenlab/shuttle/pkg/agent/openai"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Exposes the machine as an MCP server so MCP-capable hosts can inspect
the definition, start runs and read trails. Defaults to stdio transport.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := serveMCP(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().Int("port", 0, "Serve over SSE on this port instead of stdio")
	mcpCmd.Flags().String("model", "", "Model for the decision agent")
}

func serveMCP(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("machine")
	port, _ := cmd.Flags().GetInt("port")
	model, _ := cmd.Flags().GetString("model")

	logger := newLogger(cmd)
	recorder := memory.NewRecorder()

	machine, err := shuttle.New(path,
		shuttle.WithLogger(logger),
		shuttle.WithTrailRecorder(recorder),
	)
	if err != nil {
		return err
	}

	decider := openai.New(openai.Config{Model: model})
	server := mcpadapter.NewServer(machine, decider,
		mcpadapter.WithTrailRecorder(recorder),
		mcpadapter.WithLogger(logger))

	if port > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.ServeSSE(ctx, port)
	}
	return server.ServeStdio()
}
