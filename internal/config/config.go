package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Retrieval   RetrievalConfig           `json:"retrieval"`
	Prompt      PromptConfig              `json:"prompt"`
	Credentials CredentialsConfig         `json:"credentials"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	UploadDir     string `json:"upload_dir"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// RetrievalConfig controls similarity search over the document index.
type RetrievalConfig struct {
	TopK             int     `json:"top_k"`
	ScoreThreshold   float32 `json:"score_threshold"`
	EmbeddingModel   string  `json:"embedding_model"`
	EmbeddingBaseURL string  `json:"embedding_base_url"`
	EmbeddingAPIKey  string  `json:"embedding_api_key"`
	WebFallback      bool    `json:"web_fallback"`
}

// PromptConfig controls prompt assembly for every chat request.
type PromptConfig struct {
	SystemPrompt string `json:"system_prompt"`
	TokenModel   string `json:"token_model"`
	TokenLimit   int    `json:"token_limit"`
}

// CredentialsConfig controls how the generation-service token is acquired.
// Fallback to a dummy credential only happens when explicitly enabled here.
type CredentialsConfig struct {
	TokenEnv      string `json:"token_env"`
	AllowFallback bool   `json:"allow_fallback"`
	FallbackToken string `json:"fallback_token"`
	CacheTTLMin   int    `json:"cache_ttl_minutes"`
}

const (
	DefaultTokenModel = "gpt-4o"
	DefaultTopK       = 3

	DefaultSystemPrompt = "You are Le-Coach, a helpful assistant. Answer the user's question " +
		"using only the provided sources. If the sources do not contain the answer, say so. " +
		"Cite the source document name when you use it."
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}

	// Resolve sqlite paths relative to the config file location.
	for name, db := range cfg.Databases {
		if db.DSN != "" && name != "mysql" && !filepath.IsAbs(db.DSN) &&
			!strings.HasPrefix(db.DSN, ":") && !strings.HasPrefix(db.DSN, "file:") {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	if cfg.Prompt.SystemPrompt == "" {
		cfg.Prompt.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Prompt.TokenModel == "" {
		cfg.Prompt.TokenModel = DefaultTokenModel
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.EmbeddingModel == "" {
		cfg.Retrieval.EmbeddingModel = "text-embedding-3-small"
	}

	return &cfg, nil
}
