// Package config provides configuration loading and structs for the Agora server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
	Notify  NotifyConfig  `yaml:"notify"`
	Signing SigningConfig `yaml:"signing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, attachment files, and keyword index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	AttachmentsPath string `yaml:"attachments_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
}

// OpenAIConfig holds settings for the hosted embedding and completion capability.
type OpenAIConfig struct {
	APIKeyEnv       string `yaml:"api_key_env"`
	EmbeddingModel  string `yaml:"embedding_model"`
	CompletionModel string `yaml:"completion_model"`
	Dimensions      int    `yaml:"dimensions"`
	BatchSize       int    `yaml:"batch_size"`
}

// SearchConfig holds retrieval, chunking, and context assembly settings.
type SearchConfig struct {
	MatchCount      int     `yaml:"match_count"`
	MinSimilarity   float64 `yaml:"min_similarity"`
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	MaxContexts     int     `yaml:"max_contexts"`
	MaxContextChars int     `yaml:"max_context_chars"`
}

// WatchConfig holds attachment directory watch settings (development mode).
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NotifyConfig holds outbound notification settings.
type NotifyConfig struct {
	FeedbackWebhookURL string `yaml:"feedback_webhook_url"`
}

// SigningConfig holds the secret and TTL for signed attachment download URLs.
type SigningConfig struct {
	Secret string        `yaml:"secret"`
	URLTTL time.Duration `yaml:"url_ttl"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.AttachmentsPath = expandPath(cfg.Storage.AttachmentsPath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
