package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      string
	Email       string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
