package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wovenlab/shuttle"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of shuttle",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shuttle version %s\n", strings.TrimSpace(shuttle.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
