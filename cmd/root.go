package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vani",
	Short: "Multilingual conversational companion with long-term memory",
	Long: `Vani is a conversational assistant that speaks English, Kannada and
Telugu, remembers personal facts about each user across sessions, and
keeps LLM usage inside free-tier daily quotas. It runs as an HTTP/WebSocket
server, a Telegram-style chat loop, or an MCP tool server for AI agents.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".vani.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
