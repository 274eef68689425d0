package service

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/notifier"
	"go.uber.org/zap"
)

// number generation retries on the unlikely random collision
const orderNumberAttempts = 2

// bounds on client-supplied commercial fields so server-side pricing
// cannot overflow int64
const (
	maxOrderQuantity  = 1_000_000
	maxUnitPriceCents = 100_000_000
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder inserts a new order; a dedup-key collision returns the
	// original row with AlreadyProcessed set
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrderByID returns order by internal id
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// GetOrderByNumber returns order by human-facing number
	GetOrderByNumber(ctx context.Context, num string) (*models.Order, error)
	// UpdateOrderStatus updates the business status of an order
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error
	// SetOrderHidden toggles the visibility flag
	SetOrderHidden(ctx context.Context, id uuid.UUID, hidden bool) error
}

// TenantResolver maps an origin domain to a tenant context
type TenantResolver interface {
	Resolve(ctx context.Context, originDomain string) (models.TenantContext, error)
}

// BankAccountReader reads settlement accounts
type BankAccountReader interface {
	GetBankAccountByID(ctx context.Context, id uint64) (*models.BankAccount, error)
}

// InvoiceDispatcher renders and sends an invoice for a committed order.
// It must never fail the order-creation call.
type InvoiceDispatcher interface {
	Dispatch(ctx context.Context, order *models.Order, acct *models.BankAccount, tc models.TenantContext) *models.InvoiceRecord
}

// Publisher fans out order mutations to subscribers
type Publisher interface {
	Publish(ev notifier.Event)
}

// allowed business status transitions
var orderTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled, models.OrderStatusFailed},
	models.OrderStatusConfirmed: {models.OrderStatusFulfilled, models.OrderStatusCancelled},
	models.OrderStatusFulfilled: {},
	models.OrderStatusCancelled: {},
	models.OrderStatusFailed:    {},
}

// OrderService implements order intake and status transitions
type OrderService struct {
	repo       OrderRepository
	tenants    TenantResolver
	accounts   BankAccountReader
	dispatcher InvoiceDispatcher
	pub        Publisher
	logger     *zap.Logger
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, tenants TenantResolver, accounts BankAccountReader,
	dispatcher InvoiceDispatcher, pub Publisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:       repo,
		tenants:    tenants,
		accounts:   accounts,
		dispatcher: dispatcher,
		pub:        pub,
		logger:     logger,
	}
}

// Create persists a submitted order exactly once per dedup key. Pricing
// is recomputed server-side; routing comes from the origin domain. A
// repeated submission with the same key returns the original order with
// AlreadyProcessed set.
func (os *OrderService) Create(ctx context.Context, draft *models.Order, dedupKey string) (*models.Order, error) {
	if err := validateDraft(draft, dedupKey); err != nil {
		return nil, err
	}

	tc, err := os.tenants.Resolve(ctx, draft.OriginDomain)
	if err != nil {
		return nil, err
	}

	draft.DedupKey = dedupKey
	draft.ID = uuid.New()
	draft.Status = models.OrderStatusPending
	draft.ShopID = tc.ShopID

	// server-side pricing, client totals are never trusted
	draft.SubtotalCents = draft.Quantity * draft.UnitPriceCents
	if draft.Quantity >= tc.FreeDeliveryMinQty {
		draft.DeliveryFeeCents = 0
	} else {
		draft.DeliveryFeeCents = tc.DeliveryFeeCents
	}
	draft.TotalCents = draft.SubtotalCents + draft.DeliveryFeeCents

	if draft.Currency == "" {
		draft.Currency = tc.Currency
	}
	if draft.Billing == (models.Address{}) {
		draft.Billing = draft.Delivery
	}

	// bank account is stamped before dispatch so the committed row
	// carries the settlement routing even if invoicing fails
	if tc.AutoInvoice && tc.DefaultBankAccountID != nil {
		draft.BankAccountID = tc.DefaultBankAccountID
	}

	var order *models.Order
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		draft.Number = generateOrderNumber()
		order, err = os.repo.CreateOrder(ctx, draft)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrConflictData) {
			return nil, models.NewRetryableError(err)
		}
	}
	if err != nil {
		return nil, models.NewRetryableError(err)
	}

	if order.AlreadyProcessed {
		return order, nil
	}

	os.pub.Publish(notifier.Event{
		Op:        notifier.OpInsert,
		OrderID:   order.ID,
		Number:    order.Number,
		Status:    order.Status,
		UpdatedAt: time.Now(),
	})

	if tc.AutoInvoice && order.BankAccountID != nil {
		acct, err := os.accounts.GetBankAccountByID(ctx, *order.BankAccountID)
		if err != nil {
			// missing routing data degrades to no auto-invoicing
			os.logger.Warn("bank account lookup failed, skipping invoice",
				zap.String("order", order.Number), zap.Error(err))
			return order, nil
		}
		os.dispatcher.Dispatch(ctx, order, acct, tc)
	}

	return order, nil
}

// GetByID returns order by internal id
func (os *OrderService) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return os.repo.GetOrderByID(ctx, id)
}

// GetByNumber returns order by human-facing number
func (os *OrderService) GetByNumber(ctx context.Context, num string) (*models.Order, error) {
	return os.repo.GetOrderByNumber(ctx, num)
}

// UpdateStatus applies an operator status transition
func (os *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	order, err := os.repo.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}

	if !transitionAllowed(order.Status, status) {
		return models.ErrInvalidTransition
	}

	if err := os.repo.UpdateOrderStatus(ctx, id, status); err != nil {
		return err
	}

	os.pub.Publish(notifier.Event{
		Op:        notifier.OpUpdate,
		OrderID:   order.ID,
		Number:    order.Number,
		Status:    status,
		UpdatedAt: time.Now(),
	})

	return nil
}

// Hide flags an order as hidden. Orders are never deleted.
func (os *OrderService) Hide(ctx context.Context, id uuid.UUID) error {
	return os.setHidden(ctx, id, true)
}

// Unhide clears the hidden flag
func (os *OrderService) Unhide(ctx context.Context, id uuid.UUID) error {
	return os.setHidden(ctx, id, false)
}

func (os *OrderService) setHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	order, err := os.repo.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}

	if err := os.repo.SetOrderHidden(ctx, id, hidden); err != nil {
		return err
	}

	os.pub.Publish(notifier.Event{
		Op:        notifier.OpUpdate,
		OrderID:   order.ID,
		Number:    order.Number,
		Status:    order.Status,
		UpdatedAt: time.Now(),
	})

	return nil
}

func validateDraft(draft *models.Order, dedupKey string) error {
	switch {
	case dedupKey == "":
		return models.ErrInvalidOrder
	case draft.ProductID == "":
		return models.ErrInvalidOrder
	case draft.Quantity <= 0 || draft.Quantity > maxOrderQuantity:
		return models.ErrInvalidOrder
	case draft.UnitPriceCents <= 0 || draft.UnitPriceCents > maxUnitPriceCents:
		return models.ErrInvalidOrder
	case draft.CustomerEmail == "" || !strings.Contains(draft.CustomerEmail, "@"):
		return models.ErrInvalidOrder
	}
	return nil
}

func transitionAllowed(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// crockford base32, no I L O U
const numberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// generateOrderNumber returns a random human-facing order code. The
// UNIQUE constraint on orders.number is the collision guarantee.
func generateOrderNumber() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}

	var sb strings.Builder
	sb.WriteString("SC-")
	for _, b := range buf {
		sb.WriteByte(numberAlphabet[int(b)%len(numberAlphabet)])
	}

	return sb.String()
}
