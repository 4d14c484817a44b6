package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrNoActiveSession = errors.New("no active order session")
)

type OrderSessionRepository struct {
	*pg.DB
}

func NewOrderSessionRepository(db *pg.DB) *OrderSessionRepository {
	return &OrderSessionRepository{
		db,
	}
}

// GetActive returns the current ACTIVE or COLLECTING session for a
// conversation, unexpired as of now, with its line items in position
// order. Misses report ErrNoActiveSession.
func (r *OrderSessionRepository) GetActive(ctx context.Context, conversationID string, now time.Time) (*model.OrderSession, error) {
	var entity OrderSessionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("conversation_id = ? AND status IN ?", conversationID, []model.OrderSessionStatus{
			model.OrderSessionStatusActive,
			model.OrderSessionStatusCollecting,
		}).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at DESC").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}

	return toOrderSessionModel(&entity), nil
}
