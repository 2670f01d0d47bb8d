package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect and manage the assistant's long-term memory",
}

var factsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List everything remembered about a user",
	RunE:  runFactsList,
}

var factsExtractCmd = &cobra.Command{
	Use:   "extract [message]",
	Short: "Extract and store facts from a single message",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsExtract,
}

var factsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Extract facts from a file of messages, one per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsImport,
}

var factsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget everything remembered about a user",
	RunE:  runFactsClear,
}

func init() {
	for _, c := range []*cobra.Command{factsListCmd, factsExtractCmd, factsImportCmd, factsClearCmd} {
		c.Flags().String("user", "", "user id (required)")
		c.MarkFlagRequired("user")
		factsCmd.AddCommand(c)
	}
	rootCmd.AddCommand(factsCmd)
}

func runFactsList(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")

	a, err := buildAppForCommand()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	facts, err := a.vault.GetAllFacts(ctx, userID, 0)
	if err != nil {
		return err
	}

	if len(facts) == 0 {
		fmt.Println("Nothing remembered about this user yet.")
		return nil
	}

	fmt.Printf("%d fact(s) remembered:\n", len(facts))
	for _, f := range facts {
		fmt.Printf("- [%s] %s %s %s: %s\n", shortID(f.ID), f.Entity, f.Relation, f.Attribute, f.Value)
	}
	return nil
}

func runFactsExtract(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	message := args[0]

	a, err := buildAppForCommand()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	facts, err := a.service.ExtractAndStore(ctx, userID, message)
	if err != nil {
		return err
	}
	a.persistFacts(ctx)

	if len(facts) == 0 {
		fmt.Println("No facts found in the message.")
		return nil
	}
	fmt.Printf("Stored %d fact(s):\n", len(facts))
	for _, f := range facts {
		fmt.Printf("- %s %s %s: %s\n", f.Entity, f.Relation, f.Attribute, f.Value)
	}
	return nil
}

func runFactsImport(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	path := args[0]

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var messages []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			messages = append(messages, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(messages) == 0 {
		fmt.Println("No messages in file.")
		return nil
	}

	a, err := buildAppForCommand()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	bar := progressbar.NewOptions(len(messages),
		progressbar.OptionSetDescription("Extracting facts"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stored := 0
	for _, msg := range messages {
		facts, err := a.service.ExtractAndStore(ctx, userID, msg)
		if err != nil {
			bar.Finish()
			a.persistFacts(ctx)
			return fmt.Errorf("extraction stopped after %d fact(s): %w", stored, err)
		}
		stored += len(facts)
		bar.Add(1)
	}
	bar.Finish()
	a.persistFacts(ctx)

	fmt.Printf("Stored %d fact(s) from %d message(s).\n", stored, len(messages))
	return nil
}

func runFactsClear(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")

	a, err := buildAppForCommand()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if err := a.vault.ClearUserFacts(ctx, userID); err != nil {
		return err
	}
	a.persistFacts(ctx)

	fmt.Println("Cleared.")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// buildAppForCommand is the shared config+logger+app setup for one-shot
// commands.
func buildAppForCommand() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return buildApp(context.Background(), cfg, logger)
}
