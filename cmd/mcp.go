package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/anirudhms/vani/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the assistant's memory and quota state as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		ctx := context.Background()
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "vani MCP server started on stdio (facts=%d)\n", a.factStore.Count())

		srv := mcpserver.NewServer(a.service, a.vault, a.quotas)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
