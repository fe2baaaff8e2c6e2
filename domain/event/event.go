package event

import (
	"time"

	"med-lab/domain"

	"github.com/google/uuid"
)

type Type string

const (
	QueryReceivedType       Type = "QUERY_RECEIVED"
	AnswerSynthesizedType   Type = "ANSWER_SYNTHESIZED"
	EmergencyHitType        Type = "EMERGENCY_HIT"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	PIDTrackerType          Type = "PID_TRACKER"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
)

// Event is the envelope carried on every internal channel.
// Payload holds one of the typed structs below.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

// QueryReceived is emitted once a user query enters the pipeline.
type QueryReceived struct {
	MessageID    uuid.UUID
	Conversation domain.ConversationID
	UserID       string
	Content      string
	Language     string
	At           time.Time
}

// AnswerSynthesized is emitted once the assistant reply is final.
// Query carries the user text that produced the answer so consumers do not
// need to correlate with the earlier QueryReceived event.
type AnswerSynthesized struct {
	Answer domain.Answer
	Query  string
}

// EmergencyHit is emitted when triage finds urgent-care keywords in a query.
// The answer is never suppressed, only augmented.
type EmergencyHit struct {
	Conversation domain.ConversationID
	UserID       string
	Terms        []string
	At           time.Time
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ProcessTracker struct {
	PID       domain.PID
	Component domain.Component
	Status    domain.PIDStatus
	Cpu       float64
	Ram       float32
}
