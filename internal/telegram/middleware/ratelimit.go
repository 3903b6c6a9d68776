package middleware

import (
	"sync"
	"time"

	"github.com/futig/admissions-assistant/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	warningInterval   = 30 * time.Second
	inactiveThreshold = time.Hour
	cleanupInterval   = 10 * time.Minute
)

// userLimit tracks rate limit state for a single user
type userLimit struct {
	limiter       *rate.Limiter
	lastSeen      time.Time
	warningsSent  int
	lastWarningAt time.Time
}

// RateLimiterMiddleware applies a token bucket per user
type RateLimiterMiddleware struct {
	mu       sync.Mutex
	limits   map[int64]*userLimit
	rate     rate.Limit
	burst    int
	now      func() time.Time
	logger   *zap.Logger
	notifier Notifier
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiterMiddleware creates a new rate limiter middleware and starts
// evicting idle users in the background until Close.
func NewRateLimiterMiddleware(
	requestsPerMinute int,
	burstSize int,
	logger *zap.Logger,
	notifier Notifier,
) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{
		limits:   make(map[int64]*userLimit),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burstSize,
		now:      time.Now,
		logger:   logger,
		notifier: notifier,
		done:     make(chan struct{}),
	}

	go rl.cleanupInactiveUsers()

	return rl
}

// Handle processes the update through rate limiting
func (rl *RateLimiterMiddleware) Handle(update tgbotapi.Update, next Handler) {
	userID, chatID, ok := updateSource(update)
	if !ok {
		next(update)
		return
	}

	if !rl.allowRequest(userID, chatID) {
		rl.logger.Warn("rate limit exceeded",
			zap.Int64("user_id", userID),
			zap.Int64("chat_id", chatID),
		)
		return
	}

	next(update)
}

// Close stops the cleanup loop
func (rl *RateLimiterMiddleware) Close() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiterMiddleware) allowRequest(userID, chatID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.limits[userID]
	if !exists {
		limit = &userLimit{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limits[userID] = limit
	}
	limit.lastSeen = now

	if limit.limiter.AllowN(now, 1) {
		limit.warningsSent = 0
		return true
	}

	// warn at most once per interval
	if now.Sub(limit.lastWarningAt) > warningInterval {
		limit.warningsSent++
		limit.lastWarningAt = now
		go rl.sendRateLimitWarning(chatID, limit.warningsSent)
	}

	return false
}

func (rl *RateLimiterMiddleware) sendRateLimitWarning(chatID int64, warningCount int) {
	text := render.MsgRateLimited
	if warningCount > 1 {
		text = render.MsgRateLimitedHard
	}

	if err := rl.notifier.Send(chatID, text); err != nil {
		rl.logger.Error("failed to send rate limit warning",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

func (rl *RateLimiterMiddleware) cleanupInactiveUsers() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictInactive()
		}
	}
}

func (rl *RateLimiterMiddleware) evictInactive() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for userID, limit := range rl.limits {
		if now.Sub(limit.lastSeen) > inactiveThreshold {
			delete(rl.limits, userID)
			rl.logger.Debug("cleaned up inactive user from rate limiter",
				zap.Int64("user_id", userID),
			)
		}
	}
}
