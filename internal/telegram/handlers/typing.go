package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// the typing action expires after 5 seconds
const typingInterval = 4 * time.Second

// TypingNotifier keeps the typing indicator alive while a turn is generated
type TypingNotifier struct {
	sender Sender
	chatID int64
	done   chan struct{}
	logger *zap.Logger
}

func NewTypingNotifier(sender Sender, chatID int64, logger *zap.Logger) *TypingNotifier {
	return &TypingNotifier{
		sender: sender,
		chatID: chatID,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start sends the indicator now and then every few seconds until Stop or ctx is done
func (t *TypingNotifier) Start(ctx context.Context) {
	t.send()

	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.send()
			case <-t.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops sending typing indicators. It must be called once.
func (t *TypingNotifier) Stop() {
	close(t.done)
}

func (t *TypingNotifier) send() {
	if err := t.sender.Typing(t.chatID); err != nil {
		t.logger.Warn("failed to send typing action",
			zap.Error(err),
			zap.Int64("chat_id", t.chatID),
		)
	}
}
