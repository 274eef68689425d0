package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/gateway"
	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/notifier"
	"go.uber.org/zap"
)

// PaymentRepository is interface for payment fields on orders
type PaymentRepository interface {
	// GetOrderByID returns order by internal id
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// GetOrderByPaymentID returns order by external payment session id
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	// SetPaymentSession persists the session fields assigned at initiation
	SetPaymentSession(ctx context.Context, id uuid.UUID, method, paymentID, status, redirectURL string) error
	// ApplyPayment updates payment fields looked up by payment id
	ApplyPayment(ctx context.Context, paymentID, paymentStatus string, raw []byte, businessStatus *string) error
}

// GatewayClient builds signed provider requests
type GatewayClient interface {
	Initiate(order *models.Order, paymentID string) (*gateway.Session, error)
}

// PaymentService drives the provider handshake and reconciles
// asynchronous payment-status callbacks.
type PaymentService struct {
	repo   PaymentRepository
	gw     GatewayClient
	pub    Publisher
	logger *zap.Logger

	// webhook payment-failure policy, see config.FailedPaymentCancels
	failedCancels bool

	// serializes reconciliation per payment id; entries are refcounted
	// and dropped once no delivery holds them
	mu    sync.Mutex
	locks map[string]*paymentLock
}

type paymentLock struct {
	mu   sync.Mutex
	refs int
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(repo PaymentRepository, gw GatewayClient, pub Publisher,
	failedCancels bool, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		repo:          repo,
		gw:            gw,
		pub:           pub,
		logger:        logger,
		failedCancels: failedCancels,
		locks:         make(map[string]*paymentLock),
	}
}

// Initiate starts a payment session for an order and returns the
// self-submitting redirect artifact. The generated payment id and the
// initiated status are persisted before the artifact is handed out, so
// a crash after initiation still leaves a traceable record. Calling
// again for the same order overwrites the session fields only.
func (ps *PaymentService) Initiate(ctx context.Context, orderID uuid.UUID) (*gateway.Session, error) {
	order, err := ps.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusCancelled, models.OrderStatusFailed, models.OrderStatusFulfilled:
		return nil, models.ErrInvalidTransition
	}

	paymentID := uuid.NewString()

	session, err := ps.gw.Initiate(order, paymentID)
	if err != nil {
		return nil, err
	}

	err = ps.repo.SetPaymentSession(ctx, order.ID, models.PaymentMethodCard,
		paymentID, models.PaymentStatusInitiated, session.RedirectURL)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// CheckStatus returns the persisted payment status for a session. It is
// a pure read and never calls the provider.
func (ps *PaymentService) CheckStatus(ctx context.Context, paymentID string) (string, error) {
	order, err := ps.repo.GetOrderByPaymentID(ctx, paymentID)
	if err != nil {
		return "", err
	}

	return order.PaymentStatus, nil
}

// Reconcile applies an asynchronous payment-status callback to the
// matching order exactly once in effect. The payload may use canonical
// field names or the provider's legacy vocabulary (result, tranid).
// Re-delivery of an already-applied callback is a no-op; a stale
// non-terminal status arriving after a terminal one only records the
// payload.
func (ps *PaymentService) Reconcile(ctx context.Context, payload map[string]string, raw []byte) error {
	paymentID := payload["payment_id"]
	if paymentID == "" {
		paymentID = payload["tranid"]
	}

	rawStatus := payload["status"]
	if rawStatus == "" {
		rawStatus = payload["result"]
	}

	if paymentID == "" || rawStatus == "" {
		return models.ErrInvalidCallback
	}

	ps.acquireLock(paymentID)
	defer ps.releaseLock(paymentID)

	order, err := ps.repo.GetOrderByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}

	canonical, err := normalizePaymentStatus(rawStatus)
	if err != nil {
		// the payload is kept for audit even when its vocabulary is
		// unrecognized; payment and business state stay untouched
		if applyErr := ps.repo.ApplyPayment(ctx, paymentID, order.PaymentStatus, raw, nil); applyErr != nil {
			ps.logger.Error("storing unrecognized callback failed",
				zap.String("payment_id", paymentID),
				zap.Error(applyErr))
		}
		return err
	}

	if order.PaymentStatus == canonical {
		// already in target state, re-delivery has no side effects
		ps.logger.Debug("duplicate payment callback",
			zap.String("payment_id", paymentID),
			zap.String("status", canonical))
		return nil
	}

	if terminalPaymentStatus(order.PaymentStatus) && !terminalPaymentStatus(canonical) {
		// stale out-of-order delivery, a settled payment never regresses
		ps.logger.Warn("stale payment callback ignored",
			zap.String("payment_id", paymentID),
			zap.String("have", order.PaymentStatus),
			zap.String("got", canonical))
		return ps.repo.ApplyPayment(ctx, paymentID, order.PaymentStatus, raw, nil)
	}

	var businessStatus *string
	switch {
	case canonical == models.PaymentStatusCompleted && order.Status == models.OrderStatusPending:
		s := models.OrderStatusConfirmed
		businessStatus = &s
	case canonical == models.PaymentStatusFailed && order.Status == models.OrderStatusPending && ps.failedCancels:
		s := models.OrderStatusCancelled
		businessStatus = &s
	}

	// raw payload is stored verbatim for audit alongside the
	// normalized status
	if err := ps.repo.ApplyPayment(ctx, paymentID, canonical, raw, businessStatus); err != nil {
		return err
	}

	status := order.Status
	if businessStatus != nil {
		status = *businessStatus
	}

	ps.pub.Publish(notifier.Event{
		Op:        notifier.OpUpdate,
		OrderID:   order.ID,
		Number:    order.Number,
		Status:    status,
		UpdatedAt: time.Now(),
	})

	return nil
}

// acquireLock serializes callback processing for one payment id
func (ps *PaymentService) acquireLock(paymentID string) {
	ps.mu.Lock()
	lock, ok := ps.locks[paymentID]
	if !ok {
		lock = &paymentLock{}
		ps.locks[paymentID] = lock
	}
	lock.refs++
	ps.mu.Unlock()

	lock.mu.Lock()
}

// releaseLock drops the map entry once the last holder lets go
func (ps *PaymentService) releaseLock(paymentID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	lock := ps.locks[paymentID]
	lock.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(ps.locks, paymentID)
	}
}

func terminalPaymentStatus(status string) bool {
	return status == models.PaymentStatusCompleted || status == models.PaymentStatusFailed
}

// normalizePaymentStatus maps provider status vocabulary onto the
// canonical enum. Signature rejections are kept distinguishable from
// unrecognized payloads so operators can tell credential problems apart
// from a declined payment.
func normalizePaymentStatus(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CAPTURED", "COMPLETED", "SUCCESS", "PAID":
		return models.PaymentStatusCompleted, nil
	case "NOT CAPTURED", "DENIED", "CANCELED", "CANCELLED", "FAILED", "FAILURE":
		return models.PaymentStatusFailed, nil
	case "PENDING", "IN PROGRESS":
		return models.PaymentStatusPending, nil
	case "INVALID_SIGNATURE", "SIGNATURE_MISMATCH", "AUTH_FAILED":
		return "", models.ErrSignatureRejected
	default:
		return "", models.ErrInvalidCallback
	}
}
