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
	ErrMessageNotFound  = errors.New("message not found")
	ErrDuplicateMessage = errors.New("message with the same external id already exists")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateMessage
		}
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return toMessageModel(&entity), nil
}

// GetByExternalID looks up a message by the provider-assigned id inside
// one conversation. This is the de-duplication probe for webhook
// redeliveries.
func (r *MessageRepository) GetByExternalID(ctx context.Context, conversationID, externalID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("conversation_id = ? AND external_message_id = ?", conversationID, externalID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	return toMessageModel(&entity), nil
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.ConversationID != "" {
		q = q.Where("conversation_id = ?", f.ConversationID)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}

// MarkThreadRead flips every unread customer message in a conversation
// to READ in one batch and reports how many rows changed.
func (r *MessageRepository) MarkThreadRead(ctx context.Context, conversationID string) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("conversation_id = ? AND is_from_customer = ? AND status <> ?",
			conversationID, true, model.MessageStatusRead).
		Updates(map[string]interface{}{
			"status":     model.MessageStatusRead,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// ListUnprocessed returns customer messages the AI service has not
// annotated yet, oldest first. olderThan keeps the in-flight webhook
// dispatches out of the scan.
func (r *MessageRepository) ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var entities []*MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("ai_processed = ? AND is_from_customer = ? AND created_at < ?", false, true, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	return toMessageModels(entities), nil
}

// ApplyAnnotations stores the AI write-back for a message and marks it
// processed.
func (r *MessageRepository) ApplyAnnotations(ctx context.Context, id string, req model.AnnotationRequest) (*model.Message, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ai_processed":           true,
			"ai_confidence":          req.Confidence,
			"ai_extracted_intent":    req.ExtractedIntent,
			"ai_extracted_products":  productsColumn(req.ExtractedProducts),
			"ai_suggested_responses": stringListColumn(req.SuggestedResponses),
			"updated_at":             time.Now(),
		})

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrMessageNotFound
	}

	return r.GetByID(ctx, id)
}
