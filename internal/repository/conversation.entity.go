package repository

import (
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
)

type ConversationEntity struct {
	pg.Model
	CustomerID       string          `db:"customer_id"        gorm:"column:customer_id;type:uuid;not null;index"`
	Customer         *CustomerEntity `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE"`
	DistributorID    string          `db:"distributor_id"     gorm:"column:distributor_id;type:uuid;not null;index"`
	Channel          string          `db:"channel"            gorm:"column:channel;not null"`
	Status           string          `db:"status"             gorm:"column:status;not null;index"`
	UnreadCount      int             `db:"unread_count"       gorm:"column:unread_count;not null;default:0"`
	LastMessageAt    *time.Time      `db:"last_message_at"    gorm:"column:last_message_at"`
	AIContextSummary string          `db:"ai_context_summary" gorm:"column:ai_context_summary"`
}

func (ConversationEntity) TableName() string {
	return "conversations"
}

func toConversationEntity(m *model.Conversation) *ConversationEntity {
	if m == nil {
		return nil
	}
	return &ConversationEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		CustomerID:       m.CustomerID,
		DistributorID:    m.DistributorID,
		Channel:          string(m.Channel),
		Status:           string(m.Status),
		UnreadCount:      m.UnreadCount,
		LastMessageAt:    m.LastMessageAt,
		AIContextSummary: m.AIContextSummary,
	}
}

func toConversationModel(e *ConversationEntity) *model.Conversation {
	if e == nil {
		return nil
	}
	return &model.Conversation{
		ID:               e.ID,
		CustomerID:       e.CustomerID,
		DistributorID:    e.DistributorID,
		Channel:          model.Channel(e.Channel),
		Status:           model.ConversationStatus(e.Status),
		UnreadCount:      e.UnreadCount,
		LastMessageAt:    e.LastMessageAt,
		AIContextSummary: e.AIContextSummary,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toConversationModels(entities []*ConversationEntity) []*model.Conversation {
	if entities == nil {
		return nil
	}
	models := make([]*model.Conversation, len(entities))
	for i, e := range entities {
		models[i] = toConversationModel(e)
	}
	return models
}

// ConversationSummaryEntity is the flat row produced by the list-view
// join; it never maps to a table of its own.
type ConversationSummaryEntity struct {
	ID            string     `gorm:"column:id"`
	CustomerID    string     `gorm:"column:customer_id"`
	CustomerName  string     `gorm:"column:customer_name"`
	CustomerPhone string     `gorm:"column:customer_phone"`
	Channel       string     `gorm:"column:channel"`
	Status        string     `gorm:"column:status"`
	UnreadCount   int        `gorm:"column:unread_count"`
	LastMessageAt *time.Time `gorm:"column:last_message_at"`
	LastMessage   string     `gorm:"column:last_message"`
}

func toConversationSummaryModels(entities []*ConversationSummaryEntity) []*model.ConversationSummary {
	if entities == nil {
		return nil
	}
	models := make([]*model.ConversationSummary, len(entities))
	for i, e := range entities {
		models[i] = &model.ConversationSummary{
			ID:            e.ID,
			CustomerID:    e.CustomerID,
			CustomerName:  e.CustomerName,
			CustomerPhone: e.CustomerPhone,
			Channel:       model.Channel(e.Channel),
			Status:        model.ConversationStatus(e.Status),
			UnreadCount:   e.UnreadCount,
			LastMessageAt: e.LastMessageAt,
			LastMessage:   e.LastMessage,
		}
	}
	return models
}
