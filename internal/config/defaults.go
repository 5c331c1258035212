package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/agora/data/db/agora.db"
	}
	if cfg.Storage.AttachmentsPath == "" {
		cfg.Storage.AttachmentsPath = "/usr/local/var/agora/data/attachments"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/agora/data/indices/bleve"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.CompletionModel == "" {
		cfg.OpenAI.CompletionModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.Dimensions == 0 {
		cfg.OpenAI.Dimensions = 1536
	}
	if cfg.OpenAI.BatchSize == 0 {
		cfg.OpenAI.BatchSize = 64
	}
	if cfg.Search.MatchCount == 0 {
		cfg.Search.MatchCount = 10
	}
	if cfg.Search.MinSimilarity == 0 {
		cfg.Search.MinSimilarity = 0.78
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 1000
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = 150
	}
	if cfg.Search.MaxContexts == 0 {
		cfg.Search.MaxContexts = 6
	}
	if cfg.Search.MaxContextChars == 0 {
		cfg.Search.MaxContextChars = 1200
	}
	if cfg.Signing.URLTTL == 0 {
		cfg.Signing.URLTTL = 10 * time.Minute
	}
}
