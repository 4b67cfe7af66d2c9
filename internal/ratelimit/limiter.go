package ratelimit

import (
	"context"
	"time"
)

// Defaults for the per-sender message guard: at most 5 messages per chat
// inside a sliding 10-second window.
const (
	DefaultLimit  = 5
	DefaultWindow = 10 * time.Second
)

// Limiter gates message creation per sender per chat. The window is
// sliding: only messages inside the trailing window count, so there is no
// bucket boundary to game. Allow checks the budget; Record charges it once
// the message is actually persisted, so a send that fails a later gate or
// the insert never consumes a slot.
type Limiter interface {
	Allow(ctx context.Context, chatID, senderID int) (bool, error)
	Record(ctx context.Context, chatID, senderID int) error
}
