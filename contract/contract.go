//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"med-lab/domain"
	"med-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

type IRegistry interface {
	GetSinksForConversation(id domain.ConversationID) []EventSink
	Subscribe(participantID string, id domain.ConversationID, sink EventSink)
	Unsubscribe(participantID string, id domain.ConversationID)
}

type IOrchestrator interface {
	Dispatch(cmd domain.Command) error
	GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error)
	RegisterParticipant(pID string, id domain.ConversationID, sink EventSink)
	UnregisterParticipant(pID string, id domain.ConversationID)
	Start(ctx context.Context) error
	Stop()
}
