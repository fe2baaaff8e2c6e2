package sink

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"med-lab/domain"
	"med-lab/domain/event"
	"med-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDiskSink_PersistsQueryAndAnswer(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	options := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	messages := repositories.NewMessageRepository(db, log, nil)
	consultations := repositories.NewConsultationRepository(db, log, nil)
	diskSink := NewDiskSink(messages, consultations, log)

	conversation := domain.ConversationID(uuid.NewString())
	now := time.Now().UTC()

	queryID := uuid.New()
	req.NoError(diskSink.Consume(context.Background(), event.Event{
		Type:      event.QueryReceivedType,
		CreatedAt: now,
		Payload: event.QueryReceived{
			MessageID:    queryID,
			Conversation: conversation,
			UserID:       "user-1",
			Content:      "can I take ibuprofen with aspirin?",
			At:           now,
		},
	}))

	answer := domain.Answer{
		ID:           uuid.New(),
		Conversation: conversation,
		Content:      "Better not without advice.",
		Intents:      []domain.Intent{domain.IntentInteractions},
		Agents:       []string{"interactions"},
		Sources:      []string{"Ibuprofen", "Aspirin"},
		Language:     "en",
		Model:        "test/model",
		Latency:      800 * time.Millisecond,
		CreatedAt:    now.Add(time.Second),
	}
	req.NoError(diskSink.Consume(context.Background(), event.Event{
		Type:      event.AnswerSynthesizedType,
		CreatedAt: answer.CreatedAt,
		Payload:   event.AnswerSynthesized{Answer: answer, Query: "can I take ibuprofen with aspirin?"},
	}))

	// Transcript holds both sides, newest first
	stored, _, err := messages.GetMessages(string(conversation), nil)
	req.NoError(err)
	req.Len(stored, 2)
	req.Equal(string(domain.RoleAssistant), stored[0].Role)
	req.Equal(string(domain.RoleUser), stored[1].Role)
	req.Equal(queryID, stored[1].ID)

	// The consultation log captured the full context
	consulted, _, err := consultations.GetConsultations(string(conversation), nil)
	req.NoError(err)
	req.Len(consulted, 1)
	req.Equal("can I take ibuprofen with aspirin?", consulted[0].Query)
	req.Equal([]string{"interactions"}, consulted[0].Intents)
	req.Equal(answer.Latency, consulted[0].Latency)
}

func TestDiskSink_IgnoresUnrelatedEvents(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	options := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	diskSink := NewDiskSink(
		repositories.NewMessageRepository(db, log, nil),
		repositories.NewConsultationRepository(db, log, nil),
		log,
	)

	req.NoError(diskSink.Consume(context.Background(), event.Event{
		Type:      event.ChannelCapacityType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.ChannelCapacity{ChannelName: "commands", Capacity: 8, Length: 1},
	}))
}
