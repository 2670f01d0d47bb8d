package config

// Config is the top-level vani configuration, corresponding to .vani.yml.
type Config struct {
	BaseURL        string         `yaml:"base_url" koanf:"base_url"`
	FastModel      string         `yaml:"fast_model" koanf:"fast_model"`
	DeepModel      string         `yaml:"deep_model" koanf:"deep_model"`
	EmbeddingModel string         `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir        string         `yaml:"data_dir" koanf:"data_dir"`
	Quota          QuotaConfig    `yaml:"quota" koanf:"quota"`
	Language       LanguageConfig `yaml:"language" koanf:"language"`
	Chat           ChatConfig     `yaml:"chat" koanf:"chat"`
	Server         ServerConfig   `yaml:"server" koanf:"server"`
}

// QuotaConfig holds the daily call ceilings per model tier.
type QuotaConfig struct {
	FastDailyLimit int `yaml:"fast_daily_limit" koanf:"fast_daily_limit"`
	DeepDailyLimit int `yaml:"deep_daily_limit" koanf:"deep_daily_limit"`
}

// LanguageConfig holds the detection thresholds.
//
// ASCIIDiscount deflates the heuristic confidence for ASCII-dominant text,
// since Latin characters could still be a transliteration of another
// language. It is a policy knob, not a measured quantity.
type LanguageConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" koanf:"confidence_threshold"`
	ScriptThreshold     float64 `yaml:"script_threshold" koanf:"script_threshold"`
	ASCIIThreshold      float64 `yaml:"ascii_threshold" koanf:"ascii_threshold"`
	ASCIIDiscount       float64 `yaml:"ascii_discount" koanf:"ascii_discount"`
}

// ChatConfig controls the conversation pipeline.
type ChatConfig struct {
	HistoryWindow  int `yaml:"history_window" koanf:"history_window"`
	RetrieveTopK   int `yaml:"retrieve_top_k" koanf:"retrieve_top_k"`
	RequestTimeout int `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
