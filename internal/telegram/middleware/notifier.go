package middleware

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Notifier sends a short text to a chat
type Notifier interface {
	Send(chatID int64, text string) error
}

// Handler is one link of the update processing chain
type Handler func(update tgbotapi.Update)

// updateSource extracts the user and chat an update belongs to
func updateSource(update tgbotapi.Update) (userID, chatID int64, ok bool) {
	if update.Message == nil || update.Message.From == nil {
		return 0, 0, false
	}
	return update.Message.From.ID, update.Message.Chat.ID, true
}
