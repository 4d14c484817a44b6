package model

import "time"

// Customer is an end buyer inside a distributor's namespace. One is
// created automatically on the first inbound message from an unknown
// address; this subsystem never deletes them.
type Customer struct {
	ID            string    `json:"id"`
	DistributorID string    `json:"distributor_id"`
	Phone         string    `json:"phone"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
