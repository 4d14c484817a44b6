package repository

import (
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
)

type OrderSessionEntity struct {
	pg.Model
	ConversationID string                    `db:"conversation_id" gorm:"column:conversation_id;type:uuid;not null;index"`
	Status         string                    `db:"status"          gorm:"column:status;not null;index"`
	ExpiresAt      *time.Time                `db:"expires_at"      gorm:"column:expires_at"`
	Items          []*OrderSessionItemEntity `gorm:"foreignKey:OrderSessionID"`
}

func (OrderSessionEntity) TableName() string {
	return "order_sessions"
}

type OrderSessionItemEntity struct {
	pg.Model
	OrderSessionID string  `db:"order_session_id" gorm:"column:order_session_id;type:uuid;not null;index"`
	Position       int     `db:"position"         gorm:"column:position;not null;default:0"`
	ProductName    string  `db:"product_name"     gorm:"column:product_name;not null"`
	Quantity       float64 `db:"quantity"         gorm:"column:quantity;not null;default:0"`
	Unit           string  `db:"unit"             gorm:"column:unit"`
	Notes          string  `db:"notes"            gorm:"column:notes"`
}

func (OrderSessionItemEntity) TableName() string {
	return "order_session_items"
}

func toOrderSessionModel(e *OrderSessionEntity) *model.OrderSession {
	if e == nil {
		return nil
	}
	session := &model.OrderSession{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		Status:         model.OrderSessionStatus(e.Status),
		ExpiresAt:      e.ExpiresAt,
		Items:          make([]model.OrderSessionItem, 0, len(e.Items)),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	for _, item := range e.Items {
		session.Items = append(session.Items, model.OrderSessionItem{
			ID:          item.ID,
			Position:    item.Position,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Notes:       item.Notes,
		})
	}
	return session
}
