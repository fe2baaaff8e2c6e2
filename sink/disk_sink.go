package sink

import (
	"context"
	"fmt"
	"log/slog"

	"med-lab/domain"
	"med-lab/domain/event"
	"med-lab/repositories"

	"github.com/samber/lo"
)

// DiskSink persists the transcript and the consultation log. It is the only
// permanent sink that writes to BadgerDB; live connections get their own
// sinks through the registry.
type DiskSink struct {
	messages      repositories.IMessageRepository
	consultations repositories.IConsultationRepository
	log           *slog.Logger
}

func NewDiskSink(
	messages repositories.IMessageRepository,
	consultations repositories.IConsultationRepository,
	log *slog.Logger,
) DiskSink {
	return DiskSink{messages: messages, consultations: consultations, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.Event) error {
	switch evt := e.Payload.(type) {
	case event.QueryReceived:
		return d.messages.StoreMessage(repositories.DiskMessage{
			ID:           evt.MessageID,
			Conversation: string(evt.Conversation),
			Role:         string(domain.RoleUser),
			Content:      evt.Content,
			At:           evt.At,
		})
	case event.AnswerSynthesized:
		if err := d.messages.StoreMessage(toDiskMessage(evt.Answer)); err != nil {
			return err
		}
		return d.consultations.Store(toConsultation(evt.Answer, evt.Query))
	default:
		d.log.Debug(fmt.Sprintf("Not implemented event : %v", e.Type))
		return nil
	}
}

func toDiskMessage(answer domain.Answer) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:           answer.ID,
		Conversation: string(answer.Conversation),
		Role:         string(domain.RoleAssistant),
		Content:      answer.Content,
		At:           answer.CreatedAt,
	}
}

func toConsultation(answer domain.Answer, query string) repositories.Consultation {
	return repositories.Consultation{
		ID:           answer.ID,
		Conversation: string(answer.Conversation),
		Query:        query,
		Intents:      lo.Map(answer.Intents, func(i domain.Intent, _ int) string { return string(i) }),
		Agents:       answer.Agents,
		Sources:      answer.Sources,
		Language:     answer.Language,
		Emergency:    answer.Emergency,
		Model:        answer.Model,
		Latency:      answer.Latency,
		At:           answer.CreatedAt,
	}
}
