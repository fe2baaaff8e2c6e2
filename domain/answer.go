package domain

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the synthesized assistant reply for a single query.
type Answer struct {
	ID           uuid.UUID
	Conversation ConversationID
	Content      string
	Intents      []Intent
	Agents       []string
	Sources      []string
	Language     string
	Emergency    bool
	Model        string
	Latency      time.Duration
	CreatedAt    time.Time
}

// Result is what a command's reply channel carries back to the caller.
// Exactly one of Answer/Err is meaningful.
type Result struct {
	Answer Answer
	Err    error
}
