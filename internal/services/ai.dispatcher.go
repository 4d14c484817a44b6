package services

import (
	"context"
	"time"

	gateway "github.com/tamosreddi/orders-sub001/internal/gateways"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

const defaultDispatchTimeout = 5 * time.Second

type AIGateway interface {
	ProcessMessage(ctx context.Context, req *gateway.ProcessRequest) error
}

// AIDispatcher hands inbound customer messages to the AI service for
// intent extraction. The handoff is best effort: a message that never
// reaches the AI stays ai_processed=false and the reconciler picks it
// up later.
type AIDispatcher struct {
	gateway AIGateway
	timeout time.Duration
}

func NewAIDispatcher(gw AIGateway, timeout time.Duration) *AIDispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if gw == nil {
		logger.Info("ai dispatch disabled, messages will wait for the reconciler")
	}
	return &AIDispatcher{gateway: gw, timeout: timeout}
}

// Dispatch performs the handoff synchronously, bounded by the
// dispatcher timeout. The reconciler uses this path.
func (d *AIDispatcher) Dispatch(ctx context.Context, conversation *model.Conversation, msg *model.Message) error {
	if d == nil || d.gateway == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.gateway.ProcessMessage(ctx, buildProcessRequest(conversation, msg))
}

// DispatchAsync fires the handoff in the background and returns at
// once, so the webhook response never waits on the AI service. There
// is no retry here: failures are logged and left to the reconciler.
func (d *AIDispatcher) DispatchAsync(conversation *model.Conversation, msg *model.Message) {
	if d == nil || d.gateway == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.gateway.ProcessMessage(ctx, buildProcessRequest(conversation, msg)); err != nil {
			logger.Warn("ai dispatch failed, reconciler will retry",
				"message_id", msg.ID,
				"conversation_id", conversation.ID,
				"error", err)
		}
	}()
}

func buildProcessRequest(conversation *model.Conversation, msg *model.Message) *gateway.ProcessRequest {
	return &gateway.ProcessRequest{
		MessageID:      msg.ID,
		ConversationID: conversation.ID,
		CustomerID:     conversation.CustomerID,
		DistributorID:  conversation.DistributorID,
		Channel:        string(conversation.Channel),
		Content:        msg.Content,
	}
}
