package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/convoflow/convoflow/config"
	"github.com/convoflow/convoflow/finance"
	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/internal/server"
	"github.com/convoflow/convoflow/llm"
	"github.com/convoflow/convoflow/market"
	"github.com/convoflow/convoflow/rag"
	"github.com/convoflow/convoflow/store"
	"github.com/convoflow/convoflow/summarizer"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting convoflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	collector := metrics.NewCollector("convoflow", logger)

	checkpoints := buildCheckpointStore(cfg, logger)
	runs := buildRunStore(cfg, logger)

	fin := buildFinanceAssistant(cfg, checkpoints, runs, collector, logger)
	calls := buildCallPipeline(cfg, checkpoints, runs, collector, logger)

	handlers := server.NewHandlers(fin, calls, collector, logger)
	manager := server.NewManager(handlers.Router(), server.Config{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := manager.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-manager.Errors():
			return err
		case <-ctx.Done():
			return nil
		}
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited unexpectedly", zap.Error(err))
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("convoflow stopped")
}

// buildCheckpointStore prefers Redis when enabled and reachable, falling
// back to process memory so the service always starts.
func buildCheckpointStore(cfg *config.Config, logger *zap.Logger) store.CheckpointStore {
	if !cfg.Redis.Enabled {
		return store.NewMemoryCheckpointStore(logger)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory checkpoints", zap.Error(err))
		return store.NewMemoryCheckpointStore(logger)
	}

	logger.Info("using redis checkpoint store", zap.String("addr", cfg.Redis.Addr))
	return store.NewRedisCheckpointStore(client, cfg.Redis.Prefix, cfg.Redis.TTL, logger)
}

// buildRunStore prefers SQLite when enabled, falling back to memory.
func buildRunStore(cfg *config.Config, logger *zap.Logger) store.RunStore {
	if !cfg.Database.Enabled {
		return store.NewMemoryRunStore(logger)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		logger.Warn("sqlite not available, using in-memory run history", zap.Error(err))
		return store.NewMemoryRunStore(logger)
	}
	runs, err := store.NewGormRunStore(db, logger)
	if err != nil {
		logger.Warn("run store migration failed, using in-memory run history", zap.Error(err))
		return store.NewMemoryRunStore(logger)
	}

	logger.Info("using sqlite run store", zap.String("path", cfg.Database.Path))
	return runs
}

func buildFinanceAssistant(cfg *config.Config, checkpoints store.CheckpointStore, runs store.RunStore, collector *metrics.Collector, logger *zap.Logger) *finance.Assistant {
	quotes := market.NewClient(market.Config{
		APIKey:        cfg.Market.APIKey,
		RatePerMinute: cfg.Market.RequestsPerMinute,
	}, logger)

	retriever := buildRetriever(cfg, collector, logger)

	return finance.NewAssistant(quotes, retriever, checkpoints, runs, logger,
		finance.WithStageObserver(func(stage string, elapsed time.Duration, err error) {
			collector.RecordStage("finance", stage, elapsed, err)
		}),
		finance.WithRunObserver(func(agentID string, elapsed time.Duration) {
			collector.RecordRun("finance", agentID, nil)
		}),
	)
}

// buildRetriever uses embedding-based retrieval when an API key is
// configured; otherwise every query gets the curated fallback documents.
func buildRetriever(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) rag.Retriever {
	if cfg.Embed.APIKey == "" {
		return rag.NewStaticRetriever(rag.FallbackDocuments)
	}

	embedder := rag.NewOpenAIEmbedder(rag.EmbeddingConfig{
		BaseURL: cfg.Embed.BaseURL,
		APIKey:  cfg.Embed.APIKey,
		Model:   cfg.Embed.Model,
	}, logger)
	vectors := rag.NewInMemoryVectorStore(logger)
	seedVectorStore(embedder, vectors, logger)

	return rag.NewVectorRetriever(embedder, vectors, 3, rag.FallbackDocuments, logger,
		rag.WithFallbackObserver(func() {
			collector.RecordFallback("finance", "retrieval")
		}),
	)
}

// seedVectorStore embeds the curated corpus at startup. Failures are
// soft; retrieval then serves the fallback documents directly.
func seedVectorStore(embedder rag.Embedder, vectors *rag.InMemoryVectorStore, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs := rag.FallbackDocuments()
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		logger.Warn("failed to embed document corpus", zap.Error(err))
		return
	}
	for i := range docs {
		docs[i].Embedding = embeddings[i]
	}
	if err := vectors.AddDocuments(ctx, docs); err != nil {
		logger.Warn("failed to seed vector store", zap.Error(err))
	}
}

func buildCallPipeline(cfg *config.Config, checkpoints store.CheckpointStore, runs store.RunStore, collector *metrics.Collector, logger *zap.Logger) *summarizer.Pipeline {
	opts := []summarizer.Option{
		summarizer.WithStageObserver(func(stage string, elapsed time.Duration, err error) {
			collector.RecordStage("calls", stage, elapsed, err)
			if stage == "finalize" && err == nil {
				collector.RecordRun("calls", summarizer.AgentID, nil)
			}
		}),
		summarizer.WithFallbackObserver(func(collaborator string) {
			collector.RecordFallback("calls", collaborator)
		}),
	}

	if cfg.LLM.APIKey != "" {
		client := llm.NewOpenAIClient(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: float32(cfg.LLM.Temperature),
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		opts = append(opts, summarizer.WithCompleter(client), summarizer.WithScorer(client))
	}

	return summarizer.NewPipeline(checkpoints, runs, logger, opts...)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller())
}
