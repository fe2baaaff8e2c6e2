package projection

import (
	"context"
	"testing"
	"time"

	"med-lab/domain"
	"med-lab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTimeline_ProjectsBothSidesOfTheExchange(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	conversation := domain.ConversationID(uuid.NewString())
	now := time.Now().UTC()

	req.NoError(timeline.Consume(context.Background(), event.Event{
		Type:      event.QueryReceivedType,
		CreatedAt: now,
		Payload: event.QueryReceived{
			MessageID:    uuid.New(),
			Conversation: conversation,
			Content:      "what is metformin?",
			At:           now,
		},
	}))
	req.NoError(timeline.Consume(context.Background(), event.Event{
		Type:      event.AnswerSynthesizedType,
		CreatedAt: now.Add(time.Second),
		Payload: event.AnswerSynthesized{Answer: domain.Answer{
			ID:           uuid.New(),
			Conversation: conversation,
			Content:      "A medicine for type 2 diabetes.",
			CreatedAt:    now.Add(time.Second),
		}},
	}))

	messages := timeline.Messages(conversation)
	req.Len(messages, 2)
	req.Equal(domain.RoleUser, messages[0].Role)
	req.Equal(domain.RoleAssistant, messages[1].Role)

	// Other conversations remain empty
	req.Empty(timeline.Messages(domain.ConversationID(uuid.NewString())))
}

func TestTimeline_IgnoresTelemetryEvents(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	req.NoError(timeline.Consume(context.Background(), event.Event{
		Type:      event.ChannelCapacityType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.ChannelCapacity{ChannelName: "commands"},
	}))
	req.Empty(timeline.Messages("any"))
}
