package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"med-lab/domain"
	"med-lab/domain/event"
	"med-lab/errors"
	"med-lab/knowledge"
	"med-lab/llm"
	"med-lab/repositories"
	"med-lab/runtime/workers"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reply string
}

func (f *fakeClient) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: f.reply, Model: "test/model"}, nil
}

func newTestOrchestrator(t *testing.T, bufferSize int) *Orchestrator {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	options := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	telemetry := make(chan event.Event, bufferSize)
	domainEvents := make(chan event.Event, bufferSize)

	return NewOrchestrator(
		log,
		workers.NewSupervisor(log).WithTelemetry(telemetry),
		NewRegistry(),
		telemetry, domainEvents,
		repositories.NewMessageRepository(db, log, nil),
		repositories.NewConsultationRepository(db, log, nil),
		Pipeline{
			Client:         &fakeClient{reply: "Paracetamol eases pain."},
			VisionModel:    "test/vision-model",
			Index:          knowledge.NewIndex(writer, log),
			KnowledgeLimit: 3,
		},
		nil,
		2, bufferSize,
		time.Second, time.Minute,
	)
}

func TestOrchestrator_AnswersThroughTheWholePipeline(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(t, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = orchestrator.Start(ctx) }()

	conversation := domain.ConversationID(uuid.NewString())
	reply := make(chan domain.Result, 1)

	// Workers boot asynchronously, retry the dispatch until one picks it up
	req.Eventually(func() bool {
		return orchestrator.Dispatch(domain.AskCommand{
			ID:           uuid.New(),
			Conversation: conversation,
			UserID:       "user-1",
			Content:      "what is paracetamol used for?",
			CreatedAt:    time.Now().UTC(),
			Reply:        reply,
		}) == nil
	}, 2*time.Second, 50*time.Millisecond)

	var result domain.Result
	select {
	case result = <-reply:
	case <-time.After(10 * time.Second):
		req.Fail("No reply received")
	}
	req.NoError(result.Err)
	req.Contains(result.Answer.Content, "Paracetamol eases pain.")

	// The disk sink persisted both sides of the exchange
	req.Eventually(func() bool {
		messages, _, err := orchestrator.GetMessages(domain.GetMessagesCommand{Conversation: conversation})
		return err == nil && len(messages) == 2
	}, 5*time.Second, 50*time.Millisecond)

	// The timeline projection observed the same exchange
	req.Eventually(func() bool {
		return len(orchestrator.Timeline().Messages(conversation)) == 2
	}, 5*time.Second, 50*time.Millisecond)

	orchestrator.Stop()
}

func TestOrchestrator_DispatchRejectsWhenFull(t *testing.T) {
	req := require.New(t)
	// Buffer of one and no running workers: the second dispatch must fail fast
	orchestrator := newTestOrchestrator(t, 1)

	cmd := domain.AskCommand{
		ID:           uuid.New(),
		Conversation: domain.ConversationID(uuid.NewString()),
		Content:      "hello",
	}
	req.NoError(orchestrator.Dispatch(cmd))
	req.ErrorIs(orchestrator.Dispatch(cmd), errors.ErrChannelFull)
}
