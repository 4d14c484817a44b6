package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/notify"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

// ConversationService serves the dashboard surfaces: the conversation
// list, the message thread and the read/annotation mutations on top of
// them.
type ConversationService struct {
	conversationRepo ConversationRepository
	messageRepo      MessageRepository
	publisher        notify.Publisher
}

func NewConversationService(conversationRepo ConversationRepository, messageRepo MessageRepository, publisher notify.Publisher) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		publisher:        publisher,
	}
}

func (s *ConversationService) List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationSummary, int64, error) {
	return s.conversationRepo.ListSummaries(ctx, f)
}

func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.conversationRepo.GetByID(ctx, id)
}

// Messages returns one page of a conversation's transcript. The
// existence check runs first so an unknown id surfaces as not-found
// instead of an empty page.
func (s *ConversationService) Messages(ctx context.Context, conversationID string, f model.MessageFilter) ([]*model.Message, int64, error) {
	if _, err := s.conversationRepo.GetByID(ctx, conversationID); err != nil {
		return nil, 0, err
	}

	f.ConversationID = conversationID
	return s.messageRepo.List(ctx, f)
}

// MarkRead flips every unread customer message in the thread to READ,
// zeroes the conversation's unread counter and tells every open surface
// to refresh. Returns how many messages actually changed.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	changed, err := s.messageRepo.MarkThreadRead(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("mark thread read: %w", err)
	}

	if err := s.conversationRepo.ResetUnread(ctx, conversationID); err != nil {
		return changed, fmt.Errorf("reset unread: %w", err)
	}

	s.broadcast(conversation, notify.KindThreadRead)

	return changed, nil
}

// Archive retires a conversation explicitly. Nothing archives threads
// automatically; the next inbound message from the customer opens a
// fresh ACTIVE conversation.
func (s *ConversationService) Archive(ctx context.Context, conversationID string) error {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if err := s.conversationRepo.Archive(ctx, conversationID); err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}

	conversation.Status = model.ConversationStatusArchived
	s.broadcast(conversation, notify.KindConversationUpdated)

	return nil
}

// Annotate stores an AI write-back on a message and marks the message
// processed, then nudges the surfaces showing it.
func (s *ConversationService) Annotate(ctx context.Context, messageID string, req model.AnnotationRequest) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	msg, err := s.messageRepo.ApplyAnnotations(ctx, messageID, req)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversationRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		logger.Warn("annotated message has no conversation",
			"message_id", messageID,
			"conversation_id", msg.ConversationID,
			"error", err)
		return msg, nil
	}
	s.broadcast(conversation, notify.KindMessageUpdated)

	return msg, nil
}

// broadcast notifies both the thread view and the distributor's list
// view. Publish failures only get logged: polling catches up.
func (s *ConversationService) broadcast(c *model.Conversation, kind string) {
	if s.publisher == nil {
		return
	}

	now := time.Now()
	events := []notify.Event{
		{Topic: notify.ThreadTopic(c.ID), Kind: kind, At: now},
		{Topic: notify.ConversationsTopic(c.DistributorID), Kind: notify.KindConversationUpdated, At: now},
	}
	for _, ev := range events {
		if err := s.publisher.Publish(ev); err != nil {
			logger.Warn("publish notify event failed", "topic", ev.Topic, "error", err)
		}
	}
}
