package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/queue"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
	"github.com/tamosreddi/orders-sub001/pkg/prom"
)

type MessageSource interface {
	GetByID(ctx context.Context, id string) (*model.Message, error)
}

type ConversationSource interface {
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, conversation *model.Conversation, msg *model.Message) error
}

// DispatchTask is the queue payload. It names the rows; the processor
// re-reads them so every dispatch works from current state.
type DispatchTask struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// DispatchProcessor replays one queued message against the AI service.
// The webhook's fire-and-forget handoff never retries, so whatever
// lands here already slipped through once.
type DispatchProcessor struct {
	dispatcher    Dispatcher
	messages      MessageSource
	conversations ConversationSource
	ledger        *DispatchLedger
}

func NewDispatchProcessor(dispatcher Dispatcher, messages MessageSource, conversations ConversationSource, ledger *DispatchLedger) *DispatchProcessor {
	return &DispatchProcessor{
		dispatcher:    dispatcher,
		messages:      messages,
		conversations: conversations,
		ledger:        ledger,
	}
}

func (p *DispatchProcessor) GetType() string {
	return "ai_dispatch"
}

// Process settles one dispatch task. A nil return acks the queue
// message; an error leaves it pending for redelivery.
func (p *DispatchProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// 1. Decode the task.
	var task DispatchTask
	if err := json.Unmarshal(queueMessage.Data, &task); err != nil {
		logger.Error("undecodable dispatch task", "queue_id", queueMessage.ID, "error", err)
		return err
	}

	// 2. Claim the message for this consumer.
	attempt, err := p.ledger.Begin(ctx, task.MessageID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyDispatched):
			logger.Debug("handover already accepted, waiting on write-back", "message_id", task.MessageID)
			return nil
		case errors.Is(err, ErrAttemptsExhausted):
			logger.Error("attempt budget spent, leaving message until the window expires", "message_id", task.MessageID)
			prom.IncDispatch("exhausted")
			return nil
		case errors.Is(err, ErrLockHeld):
			logger.Debug("another consumer holds the message", "message_id", task.MessageID)
			return err
		default:
			logger.Error("could not claim message", "message_id", task.MessageID, "error", err)
			return err
		}
	}
	defer p.ledger.Release(ctx, attempt)

	// 3. Re-read the message; the annotation may have landed while the
	// task sat in the queue.
	msg, err := p.messages.GetByID(ctx, task.MessageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			logger.Warn("scanned message is gone, dropping task", "message_id", task.MessageID)
			return nil
		}
		return err
	}
	if msg.AIProcessed {
		logger.Debug("annotation landed while queued, nothing to do", "message_id", task.MessageID)
		return nil
	}

	// 4. The handover needs the conversation for tenant and channel.
	conversation, err := p.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			logger.Warn("message points at a missing conversation",
				"message_id", task.MessageID,
				"conversation_id", msg.ConversationID)
			_ = p.ledger.MarkFailure(ctx, attempt, err)
			return nil
		}
		return err
	}

	// 5. Hand over and settle the ledger.
	start := time.Now()
	if err := p.dispatcher.Dispatch(ctx, conversation, msg); err != nil {
		if markErr := p.ledger.MarkFailure(ctx, attempt, err); markErr != nil {
			logger.Error("could not record failed attempt", "message_id", task.MessageID, "error", markErr)
		}
		prom.IncDispatch("failure")
		prom.ObserveDispatchDuration(time.Since(start).Seconds(), "failure")
		return err
	}

	if err := p.ledger.MarkSuccess(ctx, attempt); err != nil {
		// The handover itself worked; only the rescan short-circuit is
		// lost for this message.
		logger.Error("could not record dispatch", "message_id", task.MessageID, "error", err)
	}
	prom.IncDispatch("success")
	prom.ObserveDispatchDuration(time.Since(start).Seconds(), "success")

	logger.Info("recovered message dispatched",
		"message_id", task.MessageID,
		"conversation_id", conversation.ID,
		"attempt", attempt.Attempt)

	return nil
}
