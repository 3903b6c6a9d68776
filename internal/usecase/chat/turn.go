package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/futig/admissions-assistant/internal/entity"
)

// turn is the cancellable part of one PostMessage call. Session deletion
// cancels it; commit makes the final append atomic with respect to that.
type turn struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

func (t *turn) commit(appendFn func() (*entity.ChatMessage, error)) (*entity.ChatMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrTurnCancelled, err)
	}

	msg, err := appendFn()
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}
	return msg, nil
}

func (uc *ChatUsecase) beginTurn(ctx context.Context, sessionID string) *turn {
	tctx, cancel := context.WithCancel(ctx)
	t := &turn{ctx: tctx, cancel: cancel}

	uc.mu.Lock()
	uc.inflight[sessionID] = t
	uc.mu.Unlock()

	return t
}

func (uc *ChatUsecase) endTurn(sessionID string, t *turn) {
	uc.mu.Lock()
	if uc.inflight[sessionID] == t {
		delete(uc.inflight, sessionID)
	}
	uc.mu.Unlock()

	t.cancel()
}

// abortTurn cancels the running turn of a session, if any. A commit already
// in progress finishes first.
func (uc *ChatUsecase) abortTurn(sessionID string) bool {
	uc.mu.Lock()
	t := uc.inflight[sessionID]
	uc.mu.Unlock()

	if t == nil {
		return false
	}

	t.mu.Lock()
	t.cancel()
	t.mu.Unlock()
	return true
}
