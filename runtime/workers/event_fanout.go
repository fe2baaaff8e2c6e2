package workers

import (
	"context"
	"log/slog"
	"time"

	"med-lab/contract"
	"med-lab/domain"
	"med-lab/domain/event"
)

// EventFanout broadcasts domain events to multiple in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// Permanent sinks (persistence, projections) receive every event. Sinks
// registered per conversation (live connections) only receive the events of
// their conversation.
type EventFanout struct {
	log           *slog.Logger
	sinks         []contract.EventSink
	registry      contract.IRegistry
	domainEvents  chan event.Event
	telemetryChan chan event.Event
	sinkTimeout   time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	sinks []contract.EventSink,
	registry contract.IRegistry,
	domainEvents, telemetryChan chan event.Event,
	sinkTimeout time.Duration,
) *EventFanout {
	return &EventFanout{
		log:           log,
		sinks:         sinks,
		registry:      registry,
		domainEvents:  domainEvents,
		telemetryChan: telemetryChan,
		sinkTimeout:   sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.domainEvents:
			w.fanout(ctx, evt)
			select {
			case w.telemetryChan <- evt:
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		case <-ctx.Done():
			w.log.Debug("Context done, stopping domainEvent send")
			return nil
		}
	}
}

// fanout delivers one event to every permanent sink plus the live sinks of
// its conversation. Each delivery gets its own deadline so one slow consumer
// cannot stall the pipeline.
func (w *EventFanout) fanout(ctx context.Context, evt event.Event) {
	targets := w.sinks
	if id, ok := conversationOf(evt); ok {
		targets = append(targets, w.registry.GetSinksForConversation(id)...)
	}

	for _, sink := range targets {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Error("Sink rejected event", "type", evt.Type, "error", err)
		}
		cancel()
	}
}

func conversationOf(evt event.Event) (domain.ConversationID, bool) {
	switch p := evt.Payload.(type) {
	case event.QueryReceived:
		return p.Conversation, true
	case event.AnswerSynthesized:
		return p.Answer.Conversation, true
	case event.EmergencyHit:
		return p.Conversation, true
	default:
		return "", false
	}
}
