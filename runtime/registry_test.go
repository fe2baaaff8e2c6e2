package runtime

import (
	"context"
	"testing"

	"med-lab/domain"
	"med-lab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	id string
}

func (s Sink) Consume(_ context.Context, _ event.Event) error {
	return nil
}

func TestRegistry_Subscribe_One_Conversation_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := uuid.NewString()
	conversation := domain.ConversationID(uuid.NewString())
	sink := Sink{id: "a"}

	// Given no participant is connected
	req.Nil(registry.GetSinksForConversation(conversation))

	// When a participant follows a conversation
	registry.Subscribe(participantID, conversation, sink)

	// Then
	req.Len(registry.GetSinksForConversation(conversation), 1)
	req.Contains(registry.GetSinksForConversation(conversation), sink)
}

func TestRegistry_Subscribe_One_Conversation_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conversation := domain.ConversationID(uuid.NewString())
	sink1 := Sink{id: "a"}
	sink2 := Sink{id: "b"}

	// When participants follow a conversation
	registry.Subscribe(uuid.NewString(), conversation, sink1)
	registry.Subscribe(uuid.NewString(), conversation, sink2)

	// Then
	req.Len(registry.GetSinksForConversation(conversation), 2)
	req.Contains(registry.GetSinksForConversation(conversation), sink1)
	req.Contains(registry.GetSinksForConversation(conversation), sink2)
}

func TestRegistry_Unsubscribe_One_Conversation_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := uuid.NewString()
	conversation := domain.ConversationID(uuid.NewString())
	sink := Sink{id: "a"}

	// Given a participant follows a conversation
	registry.Subscribe(participantID, conversation, sink)

	// When the participant leaves
	registry.Unsubscribe(participantID, conversation)

	// Then no follower is left
	req.Nil(registry.GetSinksForConversation(conversation))
}

func TestRegistry_Unsubscribe_One_Conversation_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID1 := uuid.NewString()
	participantID2 := uuid.NewString()
	conversation := domain.ConversationID(uuid.NewString())
	sink1 := Sink{id: "a"}
	sink2 := Sink{id: "b"}

	// When participants follow a conversation
	registry.Subscribe(participantID1, conversation, sink1)
	registry.Subscribe(participantID2, conversation, sink2)

	// When one participant leaves
	registry.Unsubscribe(participantID1, conversation)

	// Then only one follower is left
	req.Len(registry.GetSinksForConversation(conversation), 1)
	req.Contains(registry.GetSinksForConversation(conversation), sink2)
}
