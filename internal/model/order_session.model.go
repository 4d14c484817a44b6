package model

import "time"

// OrderSessionStatus tracks the lifecycle of an order-collection
// session. Only ACTIVE and COLLECTING sessions are surfaced next to a
// conversation thread.
type OrderSessionStatus string

const (
	OrderSessionStatusActive     OrderSessionStatus = "ACTIVE"
	OrderSessionStatusCollecting OrderSessionStatus = "COLLECTING"
	OrderSessionStatusConfirmed  OrderSessionStatus = "CONFIRMED"
	OrderSessionStatusExpired    OrderSessionStatus = "EXPIRED"
)

// OrderSession is a time-boxed record of in-progress order collection
// tied to one conversation. This subsystem only reads it.
type OrderSession struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversation_id"`
	Status         OrderSessionStatus `json:"status"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	Items          []OrderSessionItem `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type OrderSessionItem struct {
	ID          string  `json:"id"`
	Position    int     `json:"position"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Notes       string  `json:"notes,omitempty"`
}
