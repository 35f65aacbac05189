package models

import "time"

// LiveConnection 是一个已注册的实时推送连接。
type LiveConnection struct {
	ConnectionID string    `json:"connectionId"`
	SessionID    string    `json:"sessionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired 判断连接注册在给定时刻是否已过期。
func (c LiveConnection) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Touch 刷新最近活跃时间并顺延过期时间。
func (c *LiveConnection) Touch(now time.Time, ttl time.Duration) {
	c.LastSeenAt = now
	c.ExpiresAt = now.Add(ttl)
}

// 推送给客户端的消息类型。
const (
	MessageTypeConnected      = "connected"
	MessageTypeAck            = "ack"
	MessageTypeContentRefresh = "content_refreshed"
)

// ConnectionMessage 是连接建立与确认时下发的消息。
type ConnectionMessage struct {
	Type         string    `json:"type"`
	ConnectionID string    `json:"connectionId"`
	SessionID    string    `json:"sessionId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
