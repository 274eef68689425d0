package models

import (
	"time"

	"github.com/google/uuid"
)

// order status (business lifecycle, independent of payment status)
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// payment session status
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusPending   = "pending"
)

// payment method
const (
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

// Address is a postal address attached to an order
type Address struct {
	Name    string
	Street  string
	Zip     string
	City    string
	Country string
}

// Order is order entity
type Order struct {
	ID       uuid.UUID
	Number   string
	DedupKey string

	ProductID        string
	Quantity         int64
	UnitPriceCents   int64
	SubtotalCents    int64
	DeliveryFeeCents int64
	TotalCents       int64
	Currency         string

	CustomerEmail string
	Delivery      Address
	Billing       Address

	OriginDomain  string
	ShopID        uint64
	BankAccountID *uint64

	PaymentMethod string
	PaymentID     string
	PaymentStatus string
	RawCallback   []byte
	RedirectURL   string

	Status    string
	Hidden    bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// AlreadyProcessed is set when a create hit an existing dedup key and
	// the returned order is the winner of the original submission.
	// Not persisted.
	AlreadyProcessed bool
}
