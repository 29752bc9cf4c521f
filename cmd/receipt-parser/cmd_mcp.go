package main

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	mcpserver "github.com/joseph-ayodele/receipt-parser/internal/mcp"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

var mcpNoDB bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the parser as MCP tools over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing parse_receipt and, unless
--no-db is given, get_receipt and list_review_queue. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		var receipts repository.ReceiptRepository
		if !mcpNoDB {
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			receipts = repository.NewReceiptRepository(db, cfg.Parser.DefaultCurrency, logger)
		}
		srv := mcpserver.NewServer(version, newParser(), receipts, logger)
		logger.Info("mcp.serving", "transport", "stdio", "review_tools", receipts != nil)
		return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpNoDB, "no-db", false, "serve parse_receipt only, without a database")
}
