package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
)

// jsonScan decodes a TEXT/jsonb column that may arrive as []byte or
// string depending on the driver.
func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into json column", src)
	}
}

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type attachmentsColumn []model.Attachment

func (a attachmentsColumn) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return jsonValue([]model.Attachment(a))
}

func (a *attachmentsColumn) Scan(src interface{}) error {
	*a = nil
	return jsonScan(src, a)
}

type productsColumn []model.ExtractedProduct

func (p productsColumn) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return jsonValue([]model.ExtractedProduct(p))
}

func (p *productsColumn) Scan(src interface{}) error {
	*p = nil
	return jsonScan(src, p)
}

type stringListColumn []string

func (s stringListColumn) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return jsonValue([]string(s))
}

func (s *stringListColumn) Scan(src interface{}) error {
	*s = nil
	return jsonScan(src, s)
}

type MessageEntity struct {
	pg.Model
	ConversationID       string              `db:"conversation_id"        gorm:"column:conversation_id;type:uuid;not null;index"`
	Conversation         *ConversationEntity `gorm:"foreignKey:ConversationID;references:ID;constraint:OnDelete:CASCADE"`
	Content              string              `db:"content"                gorm:"column:content;not null"`
	IsFromCustomer       bool                `db:"is_from_customer"       gorm:"column:is_from_customer;not null;default:false"`
	Type                 string              `db:"message_type"           gorm:"column:message_type;not null"`
	Status               string              `db:"status"                 gorm:"column:status;not null"`
	Attachments          attachmentsColumn   `db:"attachments"            gorm:"column:attachments;type:text"`
	ExternalMessageID    string              `db:"external_message_id"    gorm:"column:external_message_id;index"`
	OrderContextID       string              `db:"order_context_id"       gorm:"column:order_context_id"`
	AIProcessed          bool                `db:"ai_processed"           gorm:"column:ai_processed;not null;default:false;index"`
	AIConfidence         *float64            `db:"ai_confidence"          gorm:"column:ai_confidence"`
	AIExtractedIntent    string              `db:"ai_extracted_intent"    gorm:"column:ai_extracted_intent"`
	AIExtractedProducts  productsColumn      `db:"ai_extracted_products"  gorm:"column:ai_extracted_products;type:text"`
	AISuggestedResponses stringListColumn    `db:"ai_suggested_responses" gorm:"column:ai_suggested_responses;type:text"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ConversationID:       m.ConversationID,
		Content:              m.Content,
		IsFromCustomer:       m.IsFromCustomer,
		Type:                 string(m.Type),
		Status:               string(m.Status),
		Attachments:          attachmentsColumn(m.Attachments),
		ExternalMessageID:    m.ExternalMessageID,
		OrderContextID:       m.OrderContextID,
		AIProcessed:          m.AIProcessed,
		AIConfidence:         m.AIConfidence,
		AIExtractedIntent:    m.AIExtractedIntent,
		AIExtractedProducts:  productsColumn(m.AIExtractedProducts),
		AISuggestedResponses: stringListColumn(m.AISuggestedResponses),
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:                   e.ID,
		ConversationID:       e.ConversationID,
		Content:              e.Content,
		IsFromCustomer:       e.IsFromCustomer,
		Type:                 model.MessageType(e.Type),
		Status:               model.MessageStatus(e.Status),
		Attachments:          []model.Attachment(e.Attachments),
		ExternalMessageID:    e.ExternalMessageID,
		OrderContextID:       e.OrderContextID,
		AIProcessed:          e.AIProcessed,
		AIConfidence:         e.AIConfidence,
		AIExtractedIntent:    e.AIExtractedIntent,
		AIExtractedProducts:  []model.ExtractedProduct(e.AIExtractedProducts),
		AISuggestedResponses: []string(e.AISuggestedResponses),
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
