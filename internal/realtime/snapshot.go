package realtime

import (
	"context"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/notify"
)

type ConversationLister interface {
	List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationSummary, int64, error)
}

type ThreadReader interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)
	Messages(ctx context.Context, conversationID string, f model.MessageFilter) ([]*model.Message, int64, error)
}

type OrderSessionSource interface {
	Read(ctx context.Context, conversationID string) *model.OrderSession
}

// ListSnapshot is the conversation overview a dashboard renders.
type ListSnapshot struct {
	Conversations []*model.ConversationSummary `json:"conversations"`
	Total         int64                        `json:"total"`
}

// ThreadSnapshot is everything one open conversation shows: the
// header, the transcript page and the order being collected, if any.
type ThreadSnapshot struct {
	Conversation *model.Conversation `json:"conversation"`
	Messages     []*model.Message    `json:"messages"`
	Total        int64               `json:"total"`
	OrderSession *model.OrderSession `json:"order_session,omitempty"`
}

// NewListEngine watches a distributor's conversation list.
func NewListEngine(lister ConversationLister, sub Subscriber, distributorID string, f model.ConversationFilter, interval time.Duration) *Engine {
	f.DistributorID = distributorID
	fetch := func(ctx context.Context) (any, error) {
		conversations, total, err := lister.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return ListSnapshot{Conversations: conversations, Total: total}, nil
	}
	return NewEngine(notify.ConversationsTopic(distributorID), fetch, sub, interval)
}

// NewThreadEngine watches one conversation's thread.
func NewThreadEngine(reader ThreadReader, sessions OrderSessionSource, sub Subscriber, conversationID string, f model.MessageFilter, interval time.Duration) *Engine {
	fetch := func(ctx context.Context) (any, error) {
		conversation, err := reader.Get(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		messages, total, err := reader.Messages(ctx, conversationID, f)
		if err != nil {
			return nil, err
		}

		snap := ThreadSnapshot{Conversation: conversation, Messages: messages, Total: total}
		if sessions != nil {
			snap.OrderSession = sessions.Read(ctx, conversationID)
		}
		return snap, nil
	}
	return NewEngine(notify.ThreadTopic(conversationID), fetch, sub, interval)
}
