package model

import "time"

// Channel is the transport a conversation lives on.
type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
)

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "ACTIVE"
	ConversationStatusArchived ConversationStatus = "ARCHIVED"
)

// Conversation is the continuity unit between one customer and one
// distributor on one channel. At most one ACTIVE conversation per
// (customer, channel) pair receives new inbound messages. UnreadCount
// and LastMessageAt are caches over the message stream: bumped on every
// inbound customer message, reset only when the thread is opened and
// its unread messages are marked read. Archiving is always explicit.
type Conversation struct {
	ID               string             `json:"id"`
	CustomerID       string             `json:"customer_id"`
	DistributorID    string             `json:"distributor_id"`
	Channel          Channel            `json:"channel"`
	Status           ConversationStatus `json:"status"`
	UnreadCount      int                `json:"unread_count"`
	LastMessageAt    *time.Time         `json:"last_message_at,omitempty"`
	AIContextSummary string             `json:"ai_context_summary,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ConversationSummary is the list-view projection: conversation state
// joined with customer identity and a preview of the latest message.
type ConversationSummary struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customer_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	Channel       Channel            `json:"channel"`
	Status        ConversationStatus `json:"status"`
	UnreadCount   int                `json:"unread_count"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	LastMessage   string             `json:"last_message"`
}

// ConversationFilter controls list queries.
type ConversationFilter struct {
	DistributorID string
	Statuses      []ConversationStatus // IN (...)
	Channel       *Channel             // equals
	Limit         int                  // default 50
	Offset        int
}
