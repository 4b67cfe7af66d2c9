package ratelimit

import (
	"context"
	"time"
)

// RecentCounter is the slice of the message store the limiter needs. The
// message repository implements it.
type RecentCounter interface {
	CountRecentFromSender(ctx context.Context, chatID, senderID int, since time.Time) (int, error)
}

// StoreLimiter counts persisted messages inside the trailing window. It is
// the fallback when redis is not configured: one count query per attempt,
// acceptable at this scale.
type StoreLimiter struct {
	counter RecentCounter
	limit   int
	window  time.Duration
}

// NewStoreLimiter constructs a StoreLimiter.
func NewStoreLimiter(counter RecentCounter, limit int, window time.Duration) *StoreLimiter {
	return &StoreLimiter{counter: counter, limit: limit, window: window}
}

// Allow admits the attempt while fewer than limit messages from the sender
// exist inside the window. The count-then-insert pair is not atomic; the
// overshoot-by-one race is accepted.
func (l *StoreLimiter) Allow(ctx context.Context, chatID, senderID int) (bool, error) {
	n, err := l.counter.CountRecentFromSender(ctx, chatID, senderID, time.Now().Add(-l.window))
	if err != nil {
		return false, err
	}
	return n < l.limit, nil
}

// Record is a no-op: the persisted row is the record the next count sees.
func (l *StoreLimiter) Record(ctx context.Context, chatID, senderID int) error {
	return nil
}
