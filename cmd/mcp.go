package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol (MCP) server for integration with AI assistants.
The server exposes tools to read the schedule, generate instances, complete
instances and check for conflicts. It communicates via stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.config.MCP.Enabled {
			return errors.New("the MCP server is disabled; set mcp.enabled = true in the config")
		}

		// Stdout carries the protocol.
		fmt.Fprintln(cmd.ErrOrStderr(), "🚀 Starting MCP server on stdio. Press Ctrl+C to stop.")

		server := mcp.NewServer(app.state, app.clock)
		if err := server.Start(setupSignalHandler()); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	},
}
