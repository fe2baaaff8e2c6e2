// Package domain contains core concepts of the assistant system.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationID identifies a single user/assistant transcript.
type ConversationID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents an immutable transcript entry.
type Message struct {
	ID           uuid.UUID
	Conversation ConversationID
	Role         Role
	Content      string
	CreatedAt    time.Time
}
