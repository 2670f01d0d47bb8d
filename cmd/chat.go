package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anirudhms/vani/internal/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message through the conversation pipeline",
	Long: `Runs a single message through the full pipeline: language detection,
fact extraction and recall, and persona reply. Useful for trying vani out
without starting the server.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("session", "cli", "session id identifying the user")
	chatCmd.Flags().String("conversation", "", "conversation id to continue")
	chatCmd.Flags().String("mode", "", "behavior mode: grammar")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	message := args[0]
	sessionID, _ := cmd.Flags().GetString("session")
	conversationID, _ := cmd.Flags().GetString("conversation")
	mode, _ := cmd.Flags().GetString("mode")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Chat.RequestTimeout)*time.Second)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	user, err := a.service.GetOrCreateUser(ctx, 0, sessionID, "")
	if err != nil {
		return fmt.Errorf("resolving user: %w", err)
	}

	resp, err := a.service.ProcessMessage(ctx, chat.Request{
		UserID:         user.ID,
		ConversationID: conversationID,
		Message:        message,
		Interface:      "cli",
		Mode:           mode,
	})
	if err != nil {
		return err
	}

	a.persistFacts(ctx)

	fmt.Println(resp.Text)
	fmt.Printf("\n[language=%s conversation=%s facts_extracted=%d]\n",
		resp.Language, resp.ConversationID, resp.FactsExtracted)
	return nil
}
