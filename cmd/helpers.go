package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/chat"
	"github.com/anirudhms/vani/internal/config"
	"github.com/anirudhms/vani/internal/db"
	"github.com/anirudhms/vani/internal/embeddings"
	"github.com/anirudhms/vani/internal/language"
	"github.com/anirudhms/vani/internal/llm"
	"github.com/anirudhms/vani/internal/persona"
	"github.com/anirudhms/vani/internal/quota"
	"github.com/anirudhms/vani/internal/store"
	"github.com/anirudhms/vani/internal/vault"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `vani init` to create a config file", err)
	}
	return cfg, nil
}

// newLogger builds the process-wide logger. MCP mode must keep stdout clean
// for protocol messages, so everything goes to stderr.
func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// app bundles the wired pipeline for commands to use.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	database  *db.DB
	quotas    *quota.Tracker
	store     *store.Store
	vault     *vault.Vault
	factStore *vault.FactStore
	service   *chat.Service
}

// buildApp assembles the full pipeline from config. The caller must call
// close when done.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	provider, err := llm.NewProviderFromEnv(cfg.BaseURL, cfg.FastModel)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for embeddings")
	}
	embedder := embeddings.NewOpenAIEmbedder(apiKey, embeddings.Model(cfg.EmbeddingModel))

	database, err := db.Open(filepath.Join(cfg.DataDir, "vani.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	quotas := quota.NewTracker(database, cfg.Ceilings())

	factStore, err := vault.NewFactStore(embedder)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating fact store: %w", err)
	}
	if err := factStore.Load(ctx, cfg.DataDir); err != nil {
		logger.Warn("could not load fact index, starting empty",
			zap.String("dir", cfg.DataDir),
			zap.Error(err))
	}

	v := vault.New(factStore, provider, quotas, cfg.DeepModel, logger)

	detector := language.NewDetector(provider, quotas, cfg.FastModel, language.Thresholds{
		Confidence: cfg.Language.ConfidenceThreshold,
		Script:     cfg.Language.ScriptThreshold,
		ASCII:      cfg.Language.ASCIIThreshold,
		Discount:   cfg.Language.ASCIIDiscount,
	}, logger)

	responder := persona.NewLLMResponder(provider, quotas, cfg.FastModel, logger)

	st := store.NewStore(database)
	service := chat.NewService(st, detector, v, responder, chat.Options{
		HistoryWindow: cfg.Chat.HistoryWindow,
		RetrieveTopK:  cfg.Chat.RetrieveTopK,
	}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		database:  database,
		quotas:    quotas,
		store:     st,
		vault:     v,
		factStore: factStore,
		service:   service,
	}, nil
}

// persistFacts writes the fact index to disk so memory survives restarts.
func (a *app) persistFacts(ctx context.Context) {
	if err := a.factStore.Persist(ctx, a.cfg.DataDir); err != nil {
		a.logger.Warn("persisting fact index failed", zap.Error(err))
	}
}

func (a *app) close() {
	a.database.Close()
}
