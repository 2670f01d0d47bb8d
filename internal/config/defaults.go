package config

// Default model identifiers. The fast model carries the high daily quota and
// serves language detection and persona replies; the deep model carries the
// low quota and serves fact extraction.
const (
	DefaultBaseURL        = "https://api.groq.com/openai/v1"
	DefaultFastModel      = "llama-3.1-8b-instant"
	DefaultDeepModel      = "llama-3.3-70b-versatile"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		FastModel:      DefaultFastModel,
		DeepModel:      DefaultDeepModel,
		EmbeddingModel: DefaultEmbeddingModel,
		DataDir:        "data",
		Quota: QuotaConfig{
			FastDailyLimit: 14000,
			DeepDailyLimit: 1000,
		},
		Language: LanguageConfig{
			ConfidenceThreshold: 0.7,
			ScriptThreshold:     0.3,
			ASCIIThreshold:      0.7,
			ASCIIDiscount:       0.8,
		},
		Chat: ChatConfig{
			HistoryWindow:  10,
			RetrieveTopK:   5,
			RequestTimeout: 30,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}
