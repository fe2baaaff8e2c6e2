package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"med-lab/contract"
	"med-lab/domain"
	"med-lab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type stubRegistry struct {
	conversation domain.ConversationID
	sink         contract.EventSink
}

func (r stubRegistry) GetSinksForConversation(id domain.ConversationID) []contract.EventSink {
	if id == r.conversation {
		return []contract.EventSink{r.sink}
	}
	return nil
}
func (r stubRegistry) Subscribe(string, domain.ConversationID, contract.EventSink) {}
func (r stubRegistry) Unsubscribe(string, domain.ConversationID)                   {}

func TestEventFanout_DeliversToPermanentAndConversationSinks(t *testing.T) {
	req := require.New(t)

	followed := domain.ConversationID(uuid.NewString())
	other := domain.ConversationID(uuid.NewString())

	permanent := &recordingSink{}
	live := &recordingSink{}

	domainEvents := make(chan event.Event, 8)
	telemetry := make(chan event.Event, 8)

	fanout := NewEventFanout(
		slog.Default(),
		[]contract.EventSink{permanent},
		stubRegistry{conversation: followed, sink: live},
		domainEvents, telemetry,
		time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	forFollowed := event.Event{
		Type:      event.QueryReceivedType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.QueryReceived{Conversation: followed, Content: "hello"},
	}
	forOther := event.Event{
		Type:      event.QueryReceivedType,
		CreatedAt: time.Now().UTC(),
		Payload:   event.QueryReceived{Conversation: other, Content: "bonjour"},
	}

	domainEvents <- forFollowed
	domainEvents <- forOther

	req.Eventually(func() bool { return permanent.count() == 2 },
		2*time.Second, 10*time.Millisecond)

	// Live connections only see the conversation they follow
	req.Eventually(func() bool { return live.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	// Every fanned-out event is mirrored on the telemetry channel
	req.Len(telemetry, 2)
}
