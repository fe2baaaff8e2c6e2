// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"sync"

	"med-lab/domain"
	"med-lab/domain/event"
)

// Timeline holds an in-memory transcript per conversation, rebuilt from the
// event stream. It trails the durable store by design and is meant for quick
// reads (live viewers, debugging) that can tolerate losing the buffer on
// restart.
type Timeline struct {
	mu      sync.RWMutex
	entries map[domain.ConversationID][]domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{
		entries: make(map[domain.ConversationID][]domain.Message),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.Event) error {
	switch evt := e.Payload.(type) {
	case event.QueryReceived:
		t.append(evt.Conversation, domain.Message{
			ID:           evt.MessageID,
			Conversation: evt.Conversation,
			Role:         domain.RoleUser,
			Content:      evt.Content,
			CreatedAt:    evt.At,
		})
	case event.AnswerSynthesized:
		t.append(evt.Answer.Conversation, domain.Message{
			ID:           evt.Answer.ID,
			Conversation: evt.Answer.Conversation,
			Role:         domain.RoleAssistant,
			Content:      evt.Answer.Content,
			CreatedAt:    evt.Answer.CreatedAt,
		})
	}
	return nil
}

func (t *Timeline) append(id domain.ConversationID, msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = append(t.entries[id], msg)
}

// Messages returns a copy of the conversation's timeline in arrival order.
func (t *Timeline) Messages(id domain.ConversationID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	copied := make([]domain.Message, len(t.entries[id]))
	copy(copied, t.entries[id])
	return copied
}
