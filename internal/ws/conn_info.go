package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      int
	Role        string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
