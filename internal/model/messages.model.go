package model

import (
	"errors"
	"time"
)

// MessageStatus is the delivery lifecycle of a single message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
)

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeMedia MessageType = "MEDIA"
	MessageTypeAudio MessageType = "AUDIO"
)

// Attachment is one media item carried by an inbound message.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// ExtractedProduct is one product line the AI service recognized in a
// message body.
type ExtractedProduct struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type Message struct {
	ID                string        `json:"id"`
	ConversationID    string        `json:"conversation_id"`
	Content           string        `json:"content"`
	IsFromCustomer    bool          `json:"is_from_customer"`
	Type              MessageType   `json:"message_type"`
	Status            MessageStatus `json:"status"`
	Attachments       []Attachment  `json:"attachments,omitempty"`
	ExternalMessageID string        `json:"external_message_id,omitempty"`
	OrderContextID    string        `json:"order_context_id,omitempty"`

	// AI annotations, written after the fact by the processing service.
	AIProcessed          bool               `json:"ai_processed"`
	AIConfidence         *float64           `json:"ai_confidence,omitempty"`
	AIExtractedIntent    string             `json:"ai_extracted_intent,omitempty"`
	AIExtractedProducts  []ExtractedProduct `json:"ai_extracted_products,omitempty"`
	AISuggestedResponses []string           `json:"ai_suggested_responses,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnnotationRequest is the write-back body the AI service posts once it
// has processed a message. Applying it flips AIProcessed.
type AnnotationRequest struct {
	Confidence         *float64           `json:"confidence"`
	ExtractedIntent    string             `json:"extracted_intent"`
	ExtractedProducts  []ExtractedProduct `json:"extracted_products"`
	SuggestedResponses []string           `json:"suggested_responses"`
}

func (r AnnotationRequest) Validate() error {
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 1) {
		return errors.New("confidence must be between 0 and 1")
	}
	for _, p := range r.ExtractedProducts {
		if p.Name == "" {
			return errors.New("extracted product name is required")
		}
	}
	return nil
}

// MessageFilter controls thread queries.
type MessageFilter struct {
	ConversationID string
	Limit          int  // default 200
	Offset         int  // for pagination
	Desc           bool // order by created_at
}
