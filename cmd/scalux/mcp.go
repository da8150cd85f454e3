package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux"
	"github.com/scalux/scalux/internal/cli"
	"github.com/scalux/scalux/pkg/adapters/mcp"
	"github.com/scalux/scalux/pkg/observability"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the tree and its sessions as MCP tools, so agents can query
and move sessions between modes.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			port, _ := cmd.Flags().GetInt("port")

			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			store, err := cli.OpenStore(p.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			// Logs go to stderr so they never corrupt JSON-RPC on stdout.
			eng, err := cli.NewEngine(p.cfg, store, p.logger,
				scalux.WithLifecycleHooks(observability.AuditHooks(p.logger)),
			)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(eng, eng.Sessions(),
				mcp.WithVersion(scalux.Version),
				mcp.WithLogger(p.logger),
			)

			switch transport {
			case "stdio":
				p.logger.Info("starting MCP server", "transport", "stdio")
				return srv.ServeStdio()
			case "sse":
				ctx := cli.NewSignalContext(cmd.Context())
				defer ctx.Stop()

				p.logger.Info("starting MCP server", "transport", "sse", "port", port)
				if err := srv.ServeSSE(ctx, port); err != nil {
					return err
				}
				p.logger.Info("MCP server stopped gracefully")
				return nil
			}
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	return cmd
}
