package services

import (
	"context"
	"time"

	"med-lab/contract"
	"med-lab/domain"
	"med-lab/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// allowedImageTypes are the photo formats the vision models accept.
var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

type IConsultService interface {
	Ask(ctx context.Context, conversation domain.ConversationID, userID, content string) (domain.Answer, error)
	Identify(ctx context.Context, conversation domain.ConversationID, userID string, image []byte, caption string, document bool) (domain.Answer, error)
	GetMessages(conversation domain.ConversationID, cursor *string) ([]domain.Message, *string, error)
	Follow(userID string, conversation domain.ConversationID, sink contract.EventSink)
	Unfollow(userID string, conversation domain.ConversationID)
}

// ConsultService is the synchronous facade over the asynchronous pipeline.
// It dispatches a command carrying a buffered reply channel and waits for
// the worker's single send, bounded by replyTimeout.
type ConsultService struct {
	orchestrator   contract.IOrchestrator
	replyTimeout   time.Duration
	maxUploadBytes int64
}

func NewConsultService(o contract.IOrchestrator, replyTimeout time.Duration, maxUploadBytes int64) *ConsultService {
	return &ConsultService{
		orchestrator:   o,
		replyTimeout:   replyTimeout,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *ConsultService) Ask(ctx context.Context, conversation domain.ConversationID, userID, content string) (domain.Answer, error) {
	reply := make(chan domain.Result, 1)
	cmd := domain.AskCommand{
		ID:           uuid.New(),
		Conversation: conversation,
		UserID:       userID,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
		Reply:        reply,
	}
	if err := s.orchestrator.Dispatch(cmd); err != nil {
		return domain.Answer{}, err
	}
	return s.await(ctx, reply)
}

func (s *ConsultService) Identify(ctx context.Context, conversation domain.ConversationID, userID string, image []byte, caption string, document bool) (domain.Answer, error) {
	if int64(len(image)) > s.maxUploadBytes {
		return domain.Answer{}, errors.ErrUnsupportedMedia
	}

	// Sniff the real content type, the client's claim is not trusted
	mime := mimetype.Detect(image)
	if _, ok := allowedImageTypes[mime.String()]; !ok {
		return domain.Answer{}, errors.ErrUnsupportedMedia
	}

	reply := make(chan domain.Result, 1)
	cmd := domain.IdentifyCommand{
		ID:           uuid.New(),
		Conversation: conversation,
		UserID:       userID,
		Image:        image,
		Mime:         mime.String(),
		Caption:      caption,
		Document:     document,
		CreatedAt:    time.Now().UTC(),
		Reply:        reply,
	}
	if err := s.orchestrator.Dispatch(cmd); err != nil {
		return domain.Answer{}, err
	}
	return s.await(ctx, reply)
}

func (s *ConsultService) await(ctx context.Context, reply chan domain.Result) (domain.Answer, error) {
	select {
	case result := <-reply:
		return result.Answer, result.Err
	case <-ctx.Done():
		return domain.Answer{}, ctx.Err()
	case <-time.After(s.replyTimeout):
		return domain.Answer{}, errors.ErrReplyTimeout
	}
}

func (s *ConsultService) GetMessages(conversation domain.ConversationID, cursor *string) ([]domain.Message, *string, error) {
	return s.orchestrator.GetMessages(domain.GetMessagesCommand{
		Conversation: conversation,
		Cursor:       cursor,
	})
}

func (s *ConsultService) Follow(userID string, conversation domain.ConversationID, sink contract.EventSink) {
	s.orchestrator.RegisterParticipant(userID, conversation, sink)
}

func (s *ConsultService) Unfollow(userID string, conversation domain.ConversationID) {
	s.orchestrator.UnregisterParticipant(userID, conversation)
}
