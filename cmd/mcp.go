package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/intentcfg/internal/daemon"
	"github.com/joescharf/intentcfg/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent inspect versions and patterns, compile rules and
phrases, report and review suggestions, update action items, and
test-classify messages. Configure it in an MCP client with:

  {
    "mcpServers": {
      "intentcfg": { "command": "intentcfg", "args": ["mcp"] }
    }
  }

Logs go to stderr so stdout stays reserved for the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getServices()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), daemon.ShutdownSignals()...)
		defer stop()

		srv := mcp.NewServer(svc.versions, svc.commands, svc.harness, actor(), buildVersion)
		return srv.ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
