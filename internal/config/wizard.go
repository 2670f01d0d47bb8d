package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to vani! Let's configure the assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	if os.Getenv("GROQ_API_KEY") == "" {
		fmt.Println("Note: GROQ_API_KEY is not set. The API key is read from the")
		fmt.Println("environment at startup and is never written to the config file.")
		fmt.Println()
	}

	// 1. Fast model (language detection, persona replies).
	fastPrompt := promptui.Select{
		Label: "Select fast model (detection and replies, high daily quota)",
		Items: []string{DefaultFastModel, "llama-3.1-70b-versatile", "gemma2-9b-it"},
	}
	_, fastModel, err := fastPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("fast model selection: %w", err)
	}
	cfg.FastModel = fastModel

	// 2. Deep model (fact extraction).
	deepPrompt := promptui.Select{
		Label: "Select deep model (fact extraction, low daily quota)",
		Items: []string{DefaultDeepModel, "llama-3.1-70b-versatile"},
	}
	_, deepModel, err := deepPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("deep model selection: %w", err)
	}
	cfg.DeepModel = deepModel

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (SQLite DB and fact index)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	cfg.DataDir = dataDir

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)

	return cfg, nil
}
