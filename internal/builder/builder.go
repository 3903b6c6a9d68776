package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/admissions-assistant/internal/api"
	chatapi "github.com/futig/admissions-assistant/internal/api/chat"
	documentapi "github.com/futig/admissions-assistant/internal/api/document"
	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/pkg/formatter"
	"github.com/futig/admissions-assistant/internal/telegram"
	"go.uber.org/zap"
)

// slack between the slowest turn and the request timeout
const requestTimeoutMargin = 15 * time.Second

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	formatters, err := newFormatterFactory(cfg.FormatterCfg, logger)
	if err != nil {
		return nil, err
	}

	services, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Setup API handlers
	chatHandler := chatapi.NewHandler(services.Chat, formatters, cfg.ChatCfg.UniversityName)
	documentHandler := documentapi.NewHandler(services.Documents, services.Callback, cfg.FileUploadCfg.MaxFileSize)
	logger.Info("API handlers initialized")

	// A turn may run retrieval and generation back to back
	requestTimeout := cfg.RAGCfg.EmbeddingTimeout + cfg.RAGCfg.SearchTimeout + cfg.ChatCfg.GenerationTimeout + requestTimeoutMargin

	// Setup router
	router := api.SetupRouter(chatHandler, documentHandler, requestTimeout, logger)
	logger.Info("HTTP router configured", zap.Duration("request_timeout", requestTimeout))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server:     server,
		services:   services,
		background: documentHandler,
		logger:     logger,
	}, nil
}

// BuildTelegramBot creates and initializes the Telegram bot
func BuildTelegramBot() (telegram.Bot, *Services, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building Telegram bot",
		zap.String("environment", cfg.Environment),
	)

	services, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	bot, err := telegram.NewBot(&cfg.TelegramCfg, services.TelegramSessions, services.Chat, cfg.IntentCfg.Profile.RequiredFields, logger)
	if err != nil {
		services.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	logger.Info("Telegram bot built successfully",
		zap.String("environment", cfg.Environment),
	)

	return bot, services, nil
}

// BuildServices wires the core for the operator CLI. The environment selects
// the env file like the -env flag of the servers does.
func BuildServices(ctx context.Context, environment, logLevel string) (*Services, error) {
	cfg, err := config.Load(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(logLevel, "console")
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	return buildServices(ctx, cfg, logger)
}

// newFormatterFactory enables DOCX export only when a unioffice key is configured.
func newFormatterFactory(cfg config.FormatterConfig, logger *zap.Logger) (*formatter.Factory, error) {
	if cfg.UniofficeKey == "" {
		logger.Info("DOCX export disabled, FORMATTER_UNIOFFICE_KEY is not set")
		return formatter.NewFactory(), nil
	}

	if err := formatter.ActivateDOCX(cfg.UniofficeKey, cfg.UniofficeCustomer); err != nil {
		return nil, fmt.Errorf("setup formatters: %w", err)
	}

	logger.Info("DOCX export enabled")
	return formatter.NewFactory(formatter.WithDOCX()), nil
}
