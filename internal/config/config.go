package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/futig/admissions-assistant/internal/entity"
	pkgRetry "github.com/futig/admissions-assistant/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`

	// Storage configuration
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"` // postgres | memory
	VectorStore   string `env:"VECTOR_STORE" envDefault:"pgvector"`   // pgvector | memory

	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL"`
	MigrationsPath      string        `env:"MIGRATIONS_PATH" envDefault:"file://internal/repository/migrations"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Pipeline configuration
	RAGCfg    RAGConfig    `envPrefix:"RAG_"`
	ChatCfg   ChatConfig   `envPrefix:"CHAT_"`
	IntentCfg IntentConfig `envPrefix:"INTENT_"`

	// External service configurations
	EmbeddingCfg         EmbeddingConfig         `envPrefix:"EMBEDDING_"`
	LLMCfg               LLMConfig               `envPrefix:"LLM_"`
	CallbackConnectorCfg CallbackConnectorConfig `envPrefix:"CALLBACK_"`
	CacheCfg             CacheConfig             `envPrefix:"CACHE_"`

	// Logging configuration
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json | console

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"FILE_UPLOAD_"`

	// Transcript export configuration
	FormatterCfg FormatterConfig `envPrefix:"FORMATTER_"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (optional)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// RAGConfig holds chunking, retrieval and context assembly settings
type RAGConfig struct {
	ChunkSize         int           `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap      int           `env:"CHUNK_OVERLAP" envDefault:"200"`
	TopK              int           `env:"TOP_K" envDefault:"5"`
	MinSimilarity     float64       `env:"MIN_SIMILARITY" envDefault:"0.2"`
	ContextBudget     int           `env:"CONTEXT_BUDGET_CHARS" envDefault:"6000"`
	MaxHistory        int           `env:"MAX_CONVERSATION_HISTORY" envDefault:"10"`
	IngestConcurrency int           `env:"INGEST_CONCURRENCY" envDefault:"4"`
	Categories        []string      `env:"CATEGORIES" envDefault:"admission,courses,policies,general" envSeparator:","`
	DefaultCategory   string        `env:"DEFAULT_CATEGORY" envDefault:"general"`
	EmbeddingTimeout  time.Duration `env:"EMBEDDING_TIMEOUT" envDefault:"15s"`
	SearchTimeout     time.Duration `env:"SEARCH_TIMEOUT" envDefault:"5s"`
}

// ChatConfig holds session and generation settings
type ChatConfig struct {
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`
	MaxTokens         int           `env:"MAX_TOKENS" envDefault:"1024"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" envDefault:"4000"`
	UniversityName    string        `env:"UNIVERSITY_NAME" envDefault:"the University"`
	WelcomeMessage    string        `env:"WELCOME_MESSAGE" envDefault:"Hello! I'm the admissions assistant. Ask me about programs, admission requirements or campus life, or tell me when you're ready to apply."`
	RefusalMessage    string        `env:"REFUSAL_MESSAGE" envDefault:"I'm sorry, but I can't help with that request. Please ask me something about the university."`
}

// IntentConfig holds application intent detection settings
type IntentConfig struct {
	Threshold       float64       `env:"THRESHOLD" envDefault:"0.7"`
	Mode            string        `env:"MODE" envDefault:"keyword"` // keyword | llm
	AnalysisTimeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"10s"`
	ProfilePath     string        `env:"PROFILE_PATH" envDefault:"internal/config/intent_profile.yaml"`

	// Loaded from ProfilePath
	Profile IntentProfile
}

type EmbeddingConfig struct {
	HTTPClientConfig
	Provider   string               `env:"PROVIDER" envDefault:"ollama"` // ollama | openai | mock
	Model      string               `env:"MODEL" envDefault:"nomic-embed-text"`
	Endpoint   string               `env:"ENDPOINT" envDefault:"/api/embeddings"`
	Dimensions int                  `env:"DIMENSIONS" envDefault:"768"`
	Retry      pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type LLMConfig struct {
	HTTPClientConfig
	Provider    string               `env:"PROVIDER" envDefault:"ollama"` // ollama | openai | mock
	Model       string               `env:"MODEL" envDefault:"llama3.1"`
	Endpoint    string               `env:"ENDPOINT" envDefault:"/api/generate"`
	Temperature float64              `env:"TEMPERATURE" envDefault:"0.7"`
	Retry       pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type CallbackConnectorConfig struct {
	HTTPClientConfig
	Retry pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// CacheConfig selects the embedding cache backend
type CacheConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"memory"` // none | memory | redis
	TTL             time.Duration `env:"TTL" envDefault:"24h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"60s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"5s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"60s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL" envDefault:"http://localhost:11434"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string        `env:"BOT_TOKEN"`
	UpdateTimeout      int           `env:"UPDATE_TIMEOUT" envDefault:"60"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout    int           `env:"SHUTDOWN_TIMEOUT" envDefault:"10"` // seconds
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	MaxFileSize       int64    `env:"MAX_FILE_SIZE" envDefault:"16777216"` // 16 MiB
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" envDefault:".txt,.md" envSeparator:","`
}

// FormatterConfig holds transcript export settings. DOCX export needs a
// unioffice key; with UniofficeCustomer set the key is an offline license,
// otherwise a metered API key.
type FormatterConfig struct {
	UniofficeKey      string `env:"UNIOFFICE_KEY"`
	UniofficeCustomer string `env:"UNIOFFICE_CUSTOMER"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	return Load(*envFlag)
}

// Load reads the env file of the given environment, parses variables and validates the result.
func Load(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// Variables set externally win over the file; a missing file is fine.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	profile, err := LoadIntentProfile(cfg.IntentCfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load intent profile: %w", err)
	}
	cfg.IntentCfg.Profile = *profile

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var problems []string

	// Chunking
	if cfg.RAGCfg.ChunkSize < 1 {
		problems = append(problems, fmt.Sprintf("RAG_CHUNK_SIZE must be positive, got %d", cfg.RAGCfg.ChunkSize))
	}
	if cfg.RAGCfg.ChunkOverlap < 0 || cfg.RAGCfg.ChunkOverlap >= cfg.RAGCfg.ChunkSize {
		problems = append(problems, fmt.Sprintf("RAG_CHUNK_OVERLAP must be in [0, RAG_CHUNK_SIZE(%d)), got %d", cfg.RAGCfg.ChunkSize, cfg.RAGCfg.ChunkOverlap))
	}

	// Retrieval and assembly
	if cfg.RAGCfg.TopK < 1 || cfg.RAGCfg.TopK > 50 {
		problems = append(problems, fmt.Sprintf("RAG_TOP_K must be between 1 and 50, got %d", cfg.RAGCfg.TopK))
	}
	if cfg.RAGCfg.MinSimilarity < -1 || cfg.RAGCfg.MinSimilarity > 1 {
		problems = append(problems, fmt.Sprintf("RAG_MIN_SIMILARITY must be between -1 and 1, got %g", cfg.RAGCfg.MinSimilarity))
	}
	if cfg.RAGCfg.ContextBudget < 1 {
		problems = append(problems, fmt.Sprintf("RAG_CONTEXT_BUDGET_CHARS must be positive, got %d", cfg.RAGCfg.ContextBudget))
	}
	if cfg.RAGCfg.MaxHistory < 0 {
		problems = append(problems, fmt.Sprintf("RAG_MAX_CONVERSATION_HISTORY must not be negative, got %d", cfg.RAGCfg.MaxHistory))
	}
	if cfg.RAGCfg.IngestConcurrency < 1 {
		problems = append(problems, fmt.Sprintf("RAG_INGEST_CONCURRENCY must be positive, got %d", cfg.RAGCfg.IngestConcurrency))
	}
	if !contains(cfg.RAGCfg.Categories, cfg.RAGCfg.DefaultCategory) {
		problems = append(problems, fmt.Sprintf("RAG_DEFAULT_CATEGORY %q is not one of RAG_CATEGORIES", cfg.RAGCfg.DefaultCategory))
	}

	// Intent
	if cfg.IntentCfg.Threshold <= 0 || cfg.IntentCfg.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("INTENT_THRESHOLD must be in (0, 1], got %g", cfg.IntentCfg.Threshold))
	}
	if cfg.IntentCfg.Mode != "keyword" && cfg.IntentCfg.Mode != "llm" {
		problems = append(problems, fmt.Sprintf("INTENT_MODE must be keyword or llm, got %q", cfg.IntentCfg.Mode))
	}

	// Storage
	switch cfg.StorageDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_DRIVER must be postgres or memory, got %q", cfg.StorageDriver))
	}
	switch cfg.VectorStore {
	case "pgvector":
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when VECTOR_STORE=pgvector")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("VECTOR_STORE must be pgvector or memory, got %q", cfg.VectorStore))
	}

	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		problems = append(problems, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		problems = append(problems, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	// Providers
	for name, provider := range map[string]string{"EMBEDDING_PROVIDER": cfg.EmbeddingCfg.Provider, "LLM_PROVIDER": cfg.LLMCfg.Provider} {
		if provider != "ollama" && provider != "openai" && provider != "mock" {
			problems = append(problems, fmt.Sprintf("%s must be ollama, openai or mock, got %q", name, provider))
		}
	}
	if cfg.EmbeddingCfg.Dimensions < 1 {
		problems = append(problems, fmt.Sprintf("EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingCfg.Dimensions))
	}
	if cfg.CacheCfg.Driver != "none" && cfg.CacheCfg.Driver != "memory" && cfg.CacheCfg.Driver != "redis" {
		problems = append(problems, fmt.Sprintf("CACHE_DRIVER must be none, memory or redis, got %q", cfg.CacheCfg.Driver))
	}

	// Telegram
	if cfg.TelegramCfg.RateLimitPerMinute < 1 || cfg.TelegramCfg.RateLimitPerMinute > 60 {
		problems = append(problems, fmt.Sprintf("TELEGRAM_RATE_LIMIT_PER_MINUTE must be between 1 and 60, got %d", cfg.TelegramCfg.RateLimitPerMinute))
	}
	if cfg.TelegramCfg.RateLimitBurst < 1 || cfg.TelegramCfg.RateLimitBurst > 20 {
		problems = append(problems, fmt.Sprintf("TELEGRAM_RATE_LIMIT_BURST must be between 1 and 20, got %d", cfg.TelegramCfg.RateLimitBurst))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", entity.ErrConfiguration, strings.Join(problems, "\n  - "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
