// Package main is the Agora server CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/citylab/agora/internal/answer"
	"github.com/citylab/agora/internal/auth"
	"github.com/citylab/agora/internal/config"
	"github.com/citylab/agora/internal/embedding"
	"github.com/citylab/agora/internal/extract"
	"github.com/citylab/agora/internal/indexer"
	"github.com/citylab/agora/internal/keyword"
	"github.com/citylab/agora/internal/notify"
	"github.com/citylab/agora/internal/objstore"
	"github.com/citylab/agora/internal/server"
	"github.com/citylab/agora/internal/storage"
	"github.com/citylab/agora/internal/watcher"
	"github.com/citylab/agora/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/agora/config.yaml"
	signingSecretEnv  = "AGORA_SIGNING_SECRET"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "agora server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env carries the OpenAI key and signing secret in development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "reindex":
		runReindex()
	case "version", "--version", "-v":
		fmt.Printf("agora version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watcher events, reindex passes, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		idx := components.Indexer
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Storage.AttachmentsPath,
			func(initiativeID string) {
				if _, err := idx.Reindex(context.Background(), initiativeID); err != nil {
					logger.Warn("watch reindex failed", zap.String("initiative_id", initiativeID), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		logger.Info("attachment watcher started", zap.String("root", cfg.Storage.AttachmentsPath))
	}

	srv := server.NewServer(
		components.Store,
		components.Indexer,
		components.Answers,
		components.Embedder,
		components.Objects,
		components.Signer,
		components.Keyword,
		auth.NewTokenAuthenticator(components.Store),
		notify.NewWebhookNotifier(cfg.Notify.FeedbackWebhookURL, logger),
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if fs.NArg() >= 1 {
		id := fs.Arg(0)
		inserted, err := components.Indexer.Reindex(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reindexed initiative %s: %d chunk(s)\n", id, inserted)
		return
	}
	inserted, err := components.Indexer.ReindexAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Full reindex failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reindexed all initiatives: %d chunk(s)\n", inserted)
}

// Components holds initialized services.
type Components struct {
	Store    *storage.SQLiteStore
	Objects  *objstore.DiskStore
	Signer   *objstore.URLSigner
	Keyword  keyword.Index
	Embedder embedding.Embedder
	Indexer  *indexer.Indexer
	Answers  *answer.Service
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
}

// disabledCompleter stands in when no API key is configured. The answer
// service turns its empty completions into the fixed fallback answer.
type disabledCompleter struct{}

func (disabledCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	objects, err := objstore.NewDiskStore(cfg.Storage.AttachmentsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment store: %w", err)
	}
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	secret := cfg.Signing.Secret
	if secret == "" {
		secret = os.Getenv(signingSecretEnv)
	}
	signer, err := objstore.NewURLSigner(secret, cfg.Signing.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize url signer: set signing.secret or %s: %w", signingSecretEnv, err)
	}

	var embedder embedding.Embedder
	var completer answer.Completer
	apiKey := os.Getenv(cfg.OpenAI.APIKeyEnv)
	if apiKey == "" {
		// Development fallback: retrieval still works against mock vectors,
		// answers degrade to the fixed fallback text.
		logger.Warn("no API key found, using mock embedder and disabled completions",
			zap.String("env", cfg.OpenAI.APIKeyEnv))
		embedder = embedding.NewMockEmbedder(cfg.OpenAI.Dimensions)
		completer = disabledCompleter{}
	} else {
		embedder, err = embedding.NewOpenAIEmbedder(apiKey, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Dimensions, cfg.OpenAI.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		completer, err = answer.NewOpenAICompleter(apiKey, cfg.OpenAI.CompletionModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize completer: %w", err)
		}
	}

	extractor := extract.NewExtractor(objects)
	idx := indexer.NewIndexer(store, embedder, extractor, &cfg.Search,
		indexer.WithLogger(logger),
		indexer.WithKeywordIndex(kw),
	)
	answers := answer.NewService(store, embedder, completer, &cfg.Search, logger)

	return &Components{
		Store:    store,
		Objects:  objects,
		Signer:   signer,
		Keyword:  kw,
		Embedder: embedder,
		Indexer:  idx,
		Answers:  answers,
	}, nil
}

func printUsage() {
	fmt.Println(`agora - citizen initiative portal backend

Usage:
  agora server [flags]            Start the HTTP server
  agora reindex [flags] [id]      Rebuild the retrieval corpus (one initiative, or all)
  agora version                   Show version
  agora help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/agora/config.yaml)
  --debug            Enable debug logging (watcher events, reindex passes, etc.)

Reindex Flags:
  --config string    Config file path

Examples:
  agora server
  agora server --debug
  agora reindex                   # full rebuild
  agora reindex 7b0e...           # one initiative`)
}
