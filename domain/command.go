package domain

import (
	"time"

	"github.com/google/uuid"
)

type Command interface {
	ConversationID() ConversationID
}

// AskCommand carries a text query through the consultation pipeline.
// Reply must be buffered with capacity 1; the worker sends at most once
// and never blocks on an abandoned caller.
type AskCommand struct {
	ID           uuid.UUID
	Conversation ConversationID
	UserID       string
	Content      string
	CreatedAt    time.Time
	Reply        chan Result
}

func (c AskCommand) ConversationID() ConversationID {
	return c.Conversation
}

// IdentifyCommand carries a pill or document photo to the vision agents.
type IdentifyCommand struct {
	ID           uuid.UUID
	Conversation ConversationID
	UserID       string
	Image        []byte
	Mime         string
	Caption      string
	Document     bool
	CreatedAt    time.Time
	Reply        chan Result
}

func (c IdentifyCommand) ConversationID() ConversationID {
	return c.Conversation
}

type GetMessagesCommand struct {
	Conversation ConversationID
	Cursor       *string
}

func (c GetMessagesCommand) ConversationID() ConversationID {
	return c.Conversation
}
