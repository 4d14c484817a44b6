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
	ErrConversationNotFound     = errors.New("conversation not found")
	ErrActiveConversationExists = errors.New("active conversation already exists for customer and channel")
)

type ConversationRepository struct {
	*pg.DB
}

func NewConversationRepository(db *pg.DB) *ConversationRepository {
	return &ConversationRepository{
		db,
	}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	var entity ConversationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	return toConversationModel(&entity), nil
}

// ListActive returns every ACTIVE conversation for (customer, channel),
// most recently active first. The unique index keeps this at one row;
// callers that find more treat it as an anomaly and take the first.
func (r *ConversationRepository) ListActive(ctx context.Context, customerID string, channel model.Channel) ([]*model.Conversation, error) {
	var entities []*ConversationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("customer_id = ? AND channel = ? AND status = ?", customerID, channel, model.ConversationStatusActive).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toConversationModels(entities), nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	entity := toConversationEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrActiveConversationExists
		}
		return nil, err
	}

	return toConversationModel(entity), nil
}

// TouchInbound bumps the unread counter and the last-message timestamp
// in one UPDATE, so concurrent appends never lose increments.
func (r *ConversationRepository) TouchInbound(ctx context.Context, id string, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ConversationEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"unread_count":    gorm.Expr("unread_count + ?", 1),
			"last_message_at": at,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// ResetUnread zeroes the unread counter when a thread has been opened
// and its messages marked read.
func (r *ConversationRepository) ResetUnread(ctx context.Context, id string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ConversationEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// Archive retires a conversation. The partial unique index only covers
// ACTIVE rows, so the next inbound message starts a fresh thread.
func (r *ConversationRepository) Archive(ctx context.Context, id string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ConversationEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.ConversationStatusArchived,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// ListSummaries produces the conversation list view for a distributor:
// conversation state joined with the customer and the latest message
// preview, most recently active first.
func (r *ConversationRepository) ListSummaries(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationSummary, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Table("conversations AS c").
		Where("c.distributor_id = ?", f.DistributorID)

	if len(f.Statuses) > 0 {
		q = q.Where("c.status IN ?", f.Statuses)
	}
	if f.Channel != nil {
		q = q.Where("c.channel = ?", *f.Channel)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ConversationSummaryEntity
	err := q.
		Select(`
            c.id              AS id,
            c.customer_id     AS customer_id,
            cu.name           AS customer_name,
            cu.phone          AS customer_phone,
            c.channel         AS channel,
            c.status          AS status,
            c.unread_count    AS unread_count,
            c.last_message_at AS last_message_at,
            COALESCE((
                SELECT m.content FROM messages AS m
                WHERE m.conversation_id = c.id
                ORDER BY m.created_at DESC
                LIMIT 1
            ), '')            AS last_message
        `).
		Joins("JOIN customers AS cu ON cu.id = c.customer_id").
		Order("COALESCE(c.last_message_at, c.created_at) DESC").
		Limit(limit).
		Offset(offset).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, err
	}

	return toConversationSummaryModels(entities), total, nil
}
