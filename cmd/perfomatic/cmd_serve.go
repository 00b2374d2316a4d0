package main

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"perfomatic/internal/logging"
	mcpserver "perfomatic/internal/mcp"
	"perfomatic/internal/store"
)

var serveFlags struct {
	historyPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout with the tools evaluate_budget,
run_budget and list_metrics.

The server monitors for parent process death and exits when the host goes
away.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.historyPath, "history", "", "Record run_budget runs in this SQLite history DB")
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv := mcpserver.NewServer(version)
	srv.NewInvoker = newInvoker
	if serveFlags.historyPath != "" {
		s, err := store.Open(serveFlags.historyPath)
		if err != nil {
			return err
		}
		defer s.Close()
		srv.History = s
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, 0, cancel)

	logging.New("mcp").Info("starting perfomatic MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
