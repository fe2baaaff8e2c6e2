package runtime

import (
	"sync"

	"med-lab/contract"
	"med-lab/domain"
)

type Set map[string]struct{}

// Registry tracks which live connections follow which conversation.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]contract.EventSink       // participant -> sink
	followers map[domain.ConversationID]Set       // conversation -> participants
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]contract.EventSink),
		followers: make(map[domain.ConversationID]Set),
	}
}

// GetSinksForConversation retrieves all active communication channels for a
// conversation. It performs a two-step lookup:
// 1. Identifies participant IDs following the conversation.
// 2. Resolves those IDs into actual EventSinks using the sessions map.
//
// The indirection keeps a participant's connection managed in a single place
// even when they follow several conversations at once.
// Returns nil if the conversation has no followers.
func (r *Registry) GetSinksForConversation(id domain.ConversationID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.followers[id]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for participantID := range members {
		if sink, exists := r.sessions[participantID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a participant's active connection and attaches them to
// a conversation. If the conversation is not yet tracked it is initialized
// on the fly.
func (r *Registry) Subscribe(participantID string, id domain.ConversationID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[participantID] = sink

	if _, ok := r.followers[id]; !ok {
		r.followers[id] = make(Set)
	}
	r.followers[id][participantID] = struct{}{}
}

// Unsubscribe removes a participant from the registry and the conversation.
// Empty follower sets are removed entirely to prevent the map growing
// unbounded over time.
func (r *Registry) Unsubscribe(participantID string, id domain.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, participantID)

	if members, ok := r.followers[id]; ok {
		delete(members, participantID)

		if len(members) == 0 {
			delete(r.followers, id)
		}
	}
}
