// Package config loads the application's tuning knobs from YAML. Secrets
// never live here; they come from SSM or the environment.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig configures how extracted text is split into chunks.
type ChunkingConfig struct {
	TargetSize int `yaml:"target_size"`
	Overlap    int `yaml:"overlap"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// Cutoff drops retrieved chunks below this similarity. Unset means the
	// default; a negative value disables the cutoff.
	Cutoff float64 `yaml:"cutoff"`
}

// LLMConfig configures the OpenAI-compatible API client.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// IndexingConfig configures indexing passes.
type IndexingConfig struct {
	Workers            int `yaml:"workers"`
	StorageTimeoutSecs int `yaml:"storage_timeout_secs"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// Load reads a config from path. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &AppConfig{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault reads CONFIG_PATH if set, otherwise ./config.yaml.
func LoadDefault() (*AppConfig, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Chunking.TargetSize == 0 {
		cfg.Chunking.TargetSize = 1024
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.Cutoff == 0 {
		cfg.Retrieval.Cutoff = 0.7
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}
	if cfg.Indexing.Workers == 0 {
		cfg.Indexing.Workers = 4
	}
	if cfg.Indexing.StorageTimeoutSecs == 0 {
		cfg.Indexing.StorageTimeoutSecs = 30
	}
}
