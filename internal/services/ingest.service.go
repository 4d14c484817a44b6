package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/notify"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/internal/twilio"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

var (
	ErrConversationUnavailable = errors.New("could not resolve an active conversation")
)

type CustomerRepository interface {
	GetOrCreate(ctx context.Context, c *model.Customer) (*model.Customer, error)
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	ListActive(ctx context.Context, customerID string, channel model.Channel) ([]*model.Conversation, error)
	Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	TouchInbound(ctx context.Context, id string, at time.Time) error
	ResetUnread(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	ListSummaries(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationSummary, int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
	GetByExternalID(ctx context.Context, conversationID, externalID string) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
	MarkThreadRead(ctx context.Context, conversationID string) (int64, error)
	ApplyAnnotations(ctx context.Context, id string, req model.AnnotationRequest) (*model.Message, error)
}

// IngestResult is everything the webhook handler needs after an inbound
// message has been worked through the pipeline. Duplicate marks a
// webhook redelivery: Message then points at the already-stored row and
// no events were published.
type IngestResult struct {
	Customer     *model.Customer
	Conversation *model.Conversation
	Message      *model.Message
	Duplicate    bool
}

// IngestService turns validated webhook payloads into persisted rows:
// customer, conversation and message, in that order. Each step commits
// on its own so a failure never takes earlier steps down with it.
type IngestService struct {
	customerRepo     CustomerRepository
	conversationRepo ConversationRepository
	messageRepo      MessageRepository
	publisher        notify.Publisher
}

func NewIngestService(customerRepo CustomerRepository, conversationRepo ConversationRepository, messageRepo MessageRepository, publisher notify.Publisher) *IngestService {
	return &IngestService{
		customerRepo:     customerRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		publisher:        publisher,
	}
}

func (s *IngestService) Ingest(ctx context.Context, distributorID string, in *twilio.InboundMessage) (*IngestResult, error) {
	name := strings.TrimSpace(in.ProfileName)
	if name == "" {
		name = in.From
	}

	// 1. Resolve the sender, creating the customer on first contact.
	customer, err := s.customerRepo.GetOrCreate(ctx, &model.Customer{
		DistributorID: distributorID,
		Phone:         in.From,
		Name:          name,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	// 2. Resolve the open thread for (customer, channel).
	conversation, err := s.resolveConversation(ctx, customer.ID, distributorID, in.Channel)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	// 3. Redelivery probe. Twilio retries webhooks on slow responses,
	// so the provider id may already be stored.
	if in.ExternalID != "" {
		existing, err := s.messageRepo.GetByExternalID(ctx, conversation.ID, in.ExternalID)
		if err == nil {
			logger.Info("duplicate webhook delivery",
				"conversation_id", conversation.ID,
				"external_message_id", in.ExternalID)
			return &IngestResult{Customer: customer, Conversation: conversation, Message: existing, Duplicate: true}, nil
		}
		if !errors.Is(err, repository.ErrMessageNotFound) {
			return nil, fmt.Errorf("dedup probe: %w", err)
		}
	}

	// 4. Append the message to the thread.
	created, err := s.messageRepo.Create(ctx, &model.Message{
		ConversationID:    conversation.ID,
		Content:           in.Body,
		IsFromCustomer:    true,
		Type:              in.Type(),
		Status:            in.Status(),
		Attachments:       in.Attachments,
		ExternalMessageID: in.ExternalID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateMessage) {
			// Lost the insert race against a concurrent redelivery;
			// the winner's row is the answer.
			existing, getErr := s.messageRepo.GetByExternalID(ctx, conversation.ID, in.ExternalID)
			if getErr != nil {
				return nil, fmt.Errorf("fetch after duplicate insert: %w", getErr)
			}
			return &IngestResult{Customer: customer, Conversation: conversation, Message: existing, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("create message: %w", err)
	}

	// 5. Bump the thread caches. The message is already durable, so a
	// failed counter update is logged and absorbed rather than undoing
	// the append.
	if err := s.conversationRepo.TouchInbound(ctx, conversation.ID, created.CreatedAt); err != nil {
		logger.Error("touch conversation failed",
			"conversation_id", conversation.ID,
			"error", err)
	}
	conversation.UnreadCount++
	at := created.CreatedAt
	conversation.LastMessageAt = &at

	s.announce(distributorID, conversation.ID)

	return &IngestResult{Customer: customer, Conversation: conversation, Message: created, Duplicate: false}, nil
}

// resolveConversation returns the single ACTIVE conversation for the
// pair, creating one when the customer has no open thread on the
// channel yet.
func (s *IngestService) resolveConversation(ctx context.Context, customerID, distributorID string, channel model.Channel) (*model.Conversation, error) {
	active, err := s.conversationRepo.ListActive(ctx, customerID, channel)
	if err != nil {
		return nil, err
	}
	if len(active) > 1 {
		// The unique index should make this impossible; pick the most
		// recently active one and leave a trace for the on-call.
		logger.Warn("multiple active conversations for one customer and channel",
			"customer_id", customerID,
			"channel", string(channel),
			"count", len(active))
	}
	if len(active) > 0 {
		return active[0], nil
	}

	created, err := s.conversationRepo.Create(ctx, &model.Conversation{
		CustomerID:    customerID,
		DistributorID: distributorID,
		Channel:       channel,
		Status:        model.ConversationStatusActive,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, repository.ErrActiveConversationExists) {
		return nil, err
	}

	// Lost the create race; fetch whatever won.
	active, err = s.conversationRepo.ListActive(ctx, customerID, channel)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrConversationUnavailable
	}
	return active[0], nil
}

// announce fans the post-commit change out to live subscribers. Push is
// an optimization over polling, so publish failures only get logged.
func (s *IngestService) announce(distributorID, conversationID string) {
	if s.publisher == nil {
		return
	}

	now := time.Now()
	events := []notify.Event{
		{Topic: notify.ThreadTopic(conversationID), Kind: notify.KindMessageCreated, At: now},
		{Topic: notify.ConversationsTopic(distributorID), Kind: notify.KindConversationUpdated, At: now},
	}
	for _, ev := range events {
		if err := s.publisher.Publish(ev); err != nil {
			logger.Warn("publish notify event failed", "topic", ev.Topic, "error", err)
		}
	}
}
