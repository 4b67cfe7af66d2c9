package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps a sliding window of send timestamps per (chat, sender)
// in a sorted set scored by send time. Only Record adds to the set, so the
// window tracks persisted messages, not attempts.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) key(chatID, senderID int) string {
	return fmt.Sprintf("chat_rate:%d:%d", chatID, senderID)
}

// Allow trims expired entries and checks what remains against the limit.
// The check-then-record pair is not atomic; a narrow race can overshoot the
// limit by one, which is fine for a deterrent.
func (l *RedisLimiter) Allow(ctx context.Context, chatID, senderID int) (bool, error) {
	key := l.key(chatID, senderID)
	cutoff := time.Now().Add(-l.window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() < int64(l.limit), nil
}

// Record charges one slot for a message that made it into the store.
func (l *RedisLimiter) Record(ctx context.Context, chatID, senderID int) error {
	key := l.key(chatID, senderID)
	now := time.Now()

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, l.window)
	_, err := pipe.Exec(ctx)
	return err
}
