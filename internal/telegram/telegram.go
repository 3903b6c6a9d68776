package telegram

import (
	"context"
	"fmt"

	"github.com/futig/admissions-assistant/internal/config"
	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/telegram/bot"
	"github.com/futig/admissions-assistant/internal/telegram/handlers"
	"go.uber.org/zap"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot initializes the telegram bot with all dependencies
func NewBot(
	cfg *config.TelegramConfig,
	sessions handlers.SessionStore,
	chatUC handlers.ChatUsecase,
	requiredFields []entity.ApplicationField,
	logger *zap.Logger,
) (Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is required", entity.ErrConfiguration)
	}

	b, err := bot.New(cfg, sessions, chatUC, requiredFields, logger)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	logger.Info("telegram bot initialized successfully")

	return b, nil
}
