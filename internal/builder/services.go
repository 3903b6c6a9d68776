package builder

import (
	"context"
	"errors"
	"fmt"

	memorycache "github.com/futig/admissions-assistant/internal/cache/memory"
	rediscache "github.com/futig/admissions-assistant/internal/cache/redis"
	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/integration/callback"
	"github.com/futig/admissions-assistant/internal/integration/embedding"
	"github.com/futig/admissions-assistant/internal/integration/llm"
	"github.com/futig/admissions-assistant/internal/intent"
	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/futig/admissions-assistant/internal/pkg/validator"
	"github.com/futig/admissions-assistant/internal/rag/assembler"
	"github.com/futig/admissions-assistant/internal/rag/chunker"
	"github.com/futig/admissions-assistant/internal/rag/retriever"
	"github.com/futig/admissions-assistant/internal/repository"
	"github.com/futig/admissions-assistant/internal/repository/memory"
	"github.com/futig/admissions-assistant/internal/usecase/chat"
	"github.com/futig/admissions-assistant/internal/usecase/document"
	vectormemory "github.com/futig/admissions-assistant/internal/vectorstore/memory"
	"github.com/futig/admissions-assistant/internal/vectorstore/pgvector"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Services is the wired core shared by the HTTP server, the Telegram bot and the CLI.
type Services struct {
	Config    *config.Config
	Logger    *zap.Logger
	Chat      *chat.ChatUsecase
	Documents *document.DocumentUsecase
	Validator *validator.Validator
	Callback  *callback.Connector

	TelegramSessions repository.TelegramSessionRepository

	db      *pgxpool.Pool
	closers []func() error
}

type vectorIndex interface {
	retriever.VectorSearcher
	document.VectorIndex
	Close() error
}

type repositories struct {
	sessions     repository.SessionRepository
	messages     repository.MessageRepository
	applications repository.ApplicationRepository
	documents    repository.DocumentRepository
	telegram     repository.TelegramSessionRepository
}

// buildServices wires storage, gateways and usecases from the configuration.
func buildServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Services, err error) {
	metrics.Init()

	s := &Services{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if needsDatabase(cfg) {
		// Run database migrations
		logger.Info("Running database migrations")
		if err := repository.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		s.db, err = setupDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("setup database: %w", err)
		}
	}

	repos := s.buildRepositories()
	logger.Info("Repositories initialized", zap.String("driver", cfg.StorageDriver))

	index := s.buildVectorIndex()
	s.closers = append(s.closers, index.Close)
	logger.Info("Vector index initialized", zap.String("store", cfg.VectorStore))

	embedder, err := s.buildEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	generator := s.buildGenerator()

	textChunker, err := chunker.New(cfg.RAGCfg.ChunkSize, cfg.RAGCfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("setup chunker: %w", err)
	}

	s.Validator = validator.New(cfg.FileUploadCfg, cfg.ChatCfg.MaxMessageLength, cfg.RAGCfg.Categories)

	rtr := retriever.New(embedder, index, retriever.Config{
		TopK:             cfg.RAGCfg.TopK,
		MinSimilarity:    cfg.RAGCfg.MinSimilarity,
		EmbeddingTimeout: cfg.RAGCfg.EmbeddingTimeout,
		SearchTimeout:    cfg.RAGCfg.SearchTimeout,
	})

	asm := assembler.New(assembler.Config{
		Budget:       cfg.RAGCfg.ContextBudget,
		MaxHistory:   cfg.RAGCfg.MaxHistory,
		SystemPrompt: assembler.DefaultSystemPrompt(cfg.ChatCfg.UniversityName),
	})

	profile := cfg.IntentCfg.Profile
	var classifier intent.Classifier = intent.NewKeywordClassifier(profile)
	if cfg.IntentCfg.Mode == "llm" {
		classifier = intent.NewLLMClassifier(generator, classifier, cfg.IntentCfg.AnalysisTimeout)
	}
	logger.Info("Intent classifier initialized", zap.String("mode", cfg.IntentCfg.Mode))

	s.Chat = chat.NewUsecase(
		repos.sessions,
		repos.messages,
		repos.applications,
		s.Validator,
		rtr,
		asm,
		generator,
		classifier,
		intent.NewExtractor(profile),
		chat.Config{
			HistoryWindow:     cfg.RAGCfg.MaxHistory,
			TopK:              cfg.RAGCfg.TopK,
			IntentThreshold:   cfg.IntentCfg.Threshold,
			GenerationTimeout: cfg.ChatCfg.GenerationTimeout,
			MaxTokens:         cfg.ChatCfg.MaxTokens,
			UniversityName:    cfg.ChatCfg.UniversityName,
			WelcomeMessage:    cfg.ChatCfg.WelcomeMessage,
			RefusalMessage:    cfg.ChatCfg.RefusalMessage,
			RequiredFields:    profile.RequiredFields,
			FieldPrompts:      profile.FieldPrompts,
		},
		logger,
	)

	s.Documents = document.NewUsecase(
		repos.documents,
		index,
		embedder,
		textChunker,
		s.Validator,
		document.Config{
			Concurrency:      cfg.RAGCfg.IngestConcurrency,
			DefaultCategory:  cfg.RAGCfg.DefaultCategory,
			EmbeddingTimeout: cfg.RAGCfg.EmbeddingTimeout,
		},
		logger,
	)
	logger.Info("Use cases initialized")

	s.Callback = callback.NewConnector(cfg.CallbackConnectorCfg, logger)
	s.TelegramSessions = repos.telegram

	return s, nil
}

func (s *Services) buildRepositories() repositories {
	if s.Config.StorageDriver == "memory" {
		return repositories{
			sessions:     memory.NewSessionStore(),
			messages:     memory.NewMessageStore(),
			applications: memory.NewApplicationStore(),
			documents:    memory.NewDocumentStore(),
			telegram:     memory.NewTelegramSessionStore(),
		}
	}
	return repositories{
		sessions:     repository.NewSessionPostgres(s.db),
		messages:     repository.NewMessagePostgres(s.db),
		applications: repository.NewApplicationPostgres(s.db),
		documents:    repository.NewDocumentPostgres(s.db),
		telegram:     repository.NewTelegramSessionPostgres(s.db),
	}
}

func (s *Services) buildVectorIndex() vectorIndex {
	dims := s.Config.EmbeddingCfg.Dimensions
	if s.Config.VectorStore == "memory" {
		return vectormemory.New(dims)
	}
	return pgvector.New(s.db, dims)
}

func (s *Services) buildEmbedder(ctx context.Context) (embedding.Embedder, error) {
	cfg := s.Config
	provider := cfg.EmbeddingCfg.Provider
	if cfg.EnableMocks {
		provider = "mock"
	}

	var embedder embedding.Embedder
	switch provider {
	case "mock":
		embedder = embedding.NewMockConnector(cfg.EmbeddingCfg.Dimensions, s.Logger)
	case "openai":
		embedder = embedding.NewOpenAIConnector(cfg.EmbeddingCfg, s.Logger)
	default:
		embedder = embedding.NewConnector(cfg.EmbeddingCfg, s.Logger)
	}
	s.Logger.Info("Embedding gateway initialized",
		zap.String("provider", provider),
		zap.String("model", cfg.EmbeddingCfg.Model),
		zap.Int("dimensions", cfg.EmbeddingCfg.Dimensions),
	)

	switch cfg.CacheCfg.Driver {
	case "memory":
		cache := memorycache.New(cfg.CacheCfg.TTL, cfg.CacheCfg.CleanupInterval)
		return embedding.NewCachedEmbedder(embedder, cache, cfg.EmbeddingCfg.Model), nil
	case "redis":
		cache, err := rediscache.New(ctx, cfg.CacheCfg.RedisAddr, cfg.CacheCfg.RedisPassword, cfg.CacheCfg.RedisDB, cfg.CacheCfg.TTL, s.Logger)
		if err != nil {
			return nil, fmt.Errorf("setup embedding cache: %w", err)
		}
		s.closers = append(s.closers, cache.Close)
		return embedding.NewCachedEmbedder(embedder, cache, cfg.EmbeddingCfg.Model), nil
	default:
		return embedder, nil
	}
}

func (s *Services) buildGenerator() chat.Generator {
	cfg := s.Config
	provider := cfg.LLMCfg.Provider
	if cfg.EnableMocks {
		provider = "mock"
	}
	s.Logger.Info("Generation gateway initialized",
		zap.String("provider", provider),
		zap.String("model", cfg.LLMCfg.Model),
	)

	switch provider {
	case "mock":
		return llm.NewMockConnector(s.Logger)
	case "openai":
		return llm.NewOpenAIConnector(cfg.LLMCfg, s.Logger)
	default:
		return llm.NewConnector(cfg.LLMCfg, s.Logger)
	}
}

// Close releases the index, caches and database pool.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil

	if s.db != nil {
		s.Logger.Info("Closing database connections")
		s.db.Close()
		s.db = nil
	}
	return errors.Join(errs...)
}
