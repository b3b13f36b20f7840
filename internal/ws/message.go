package ws

import (
	"time"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageSnapshot      MessageType = "status.snapshot"
	MessageLinkDown      MessageType = "link.down"
	MessageLinkConfirmed MessageType = "link.confirmed"
	MessageLinkRecovered MessageType = "link.recovered"
)

// Message is the envelope for all WebSocket messages. Data is a
// *models.StatusSnapshot for status.snapshot and a models.LinkEvent for
// the link.* types.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}
