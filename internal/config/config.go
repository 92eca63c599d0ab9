package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WeaviateConfig contains connection details for a Weaviate vector store.
// APIKeyEnv names the environment variable holding the embedding/generation
// provider credential; it is resolved at connect time, never stored here.
type WeaviateConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Type     string          `yaml:"type"`
	Weaviate *WeaviateConfig `yaml:"weaviate,omitempty"`
}

// CollectionConfig names the target collection and its record schema:
// "paged" keeps source and sequence as separate fields, "keyed" collapses
// them into one unique identifier field.
type CollectionConfig struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema"`
}

// ChunkerConfig configures how source documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// SearchConfig holds query-side defaults.
type SearchConfig struct {
	Limit int `yaml:"limit"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store      StoreConfig      `yaml:"store"`
	Collection CollectionConfig `yaml:"collection"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Search     SearchConfig     `yaml:"search"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/pdfrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Store:      StoreConfig{Type: "memory"},
		Collection: CollectionConfig{Name: "TextChunks", Schema: "paged"},
		Chunker:    ChunkerConfig{Type: "pdf", SentencesPerChunk: 5, OverlapSentences: 1},
		Search:     SearchConfig{Limit: 3},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Collection.Name == "" {
		cfg.Collection.Name = "TextChunks"
	}
	if cfg.Collection.Schema == "" {
		cfg.Collection.Schema = "paged"
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Search.Limit == 0 {
		cfg.Search.Limit = 3
	}
	if cfg.Store.Type == "weaviate" && cfg.Store.Weaviate != nil {
		if cfg.Store.Weaviate.URL == "" {
			cfg.Store.Weaviate.URL = "http://localhost:8080"
		}
		if cfg.Store.Weaviate.APIKeyEnv == "" {
			cfg.Store.Weaviate.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Store.Weaviate.TimeoutSecs == 0 {
			cfg.Store.Weaviate.TimeoutSecs = 30
		}
	}
}
