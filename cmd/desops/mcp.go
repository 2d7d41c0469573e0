package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aretw0/desops/internal/cli"
	"github.com/aretw0/desops/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts desops as an MCP Server so agents can call the analyses as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		setup, err := newSetup(cmd, nil)
		if err != nil {
			return err
		}
		defer setup.Close()

		srv := mcp.NewServer(setup.Engine)
		logger := setup.Engine.Logger()

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("starting desops MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				return fmt.Errorf("MCP server execution failed: %w", err)
			}
		case "sse":
			logger.Info("starting desops MCP server (SSE)", "port", port)
			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()
			if err := srv.ServeSSE(sc, port); err != nil {
				return fmt.Errorf("MCP server execution failed: %w", err)
			}
			logger.Info("MCP server stopped gracefully", "signal", sc.Signal())
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
