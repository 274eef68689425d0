package models

import (
	"time"

	"github.com/google/uuid"
)

// invoice delivery status
const (
	InvoiceStatusPending = "pending"
	InvoiceStatusSent    = "sent"
)

// InvoiceRecord references a generated invoice artifact and its delivery
// outcome. Kept separate from the order so a failed send never rolls back
// a committed order.
type InvoiceRecord struct {
	ID        uint64
	Seq       int64
	OrderID   uuid.UUID
	Location  string
	Status    string
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}
