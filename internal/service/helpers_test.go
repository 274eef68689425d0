package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/notifier"
)

// in-memory order repository shared by the service tests
type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*models.Order
	failCreate error
	applyCalls int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCreate != nil {
		return nil, r.failCreate
	}

	for _, o := range r.orders {
		if o.DedupKey == order.DedupKey {
			winner := *o
			winner.AlreadyProcessed = true
			return &winner, nil
		}
	}
	for _, o := range r.orders {
		if o.Number == order.Number {
			return nil, models.ErrConflictData
		}
	}

	stored := *order
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.orders[stored.ID] = &stored

	result := stored
	return &result, nil
}

func (r *fakeOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	result := *o
	return &result, nil
}

func (r *fakeOrderRepo) GetOrderByNumber(ctx context.Context, num string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.Number == num {
			result := *o
			return &result, nil
		}
	}
	return nil, models.ErrDataNotFound
}

func (r *fakeOrderRepo) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.PaymentID == paymentID {
			result := *o
			return &result, nil
		}
	}
	return nil, models.ErrDataNotFound
}

func (r *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return models.ErrDataNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (r *fakeOrderRepo) SetOrderHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return models.ErrDataNotFound
	}
	o.Hidden = hidden
	return nil
}

func (r *fakeOrderRepo) SetPaymentSession(ctx context.Context, id uuid.UUID, method, paymentID, status, redirectURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return models.ErrDataNotFound
	}
	o.PaymentMethod = method
	o.PaymentID = paymentID
	o.PaymentStatus = status
	o.RedirectURL = redirectURL
	return nil
}

func (r *fakeOrderRepo) ApplyPayment(ctx context.Context, paymentID, paymentStatus string, raw []byte, businessStatus *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyCalls++

	for _, o := range r.orders {
		if o.PaymentID == paymentID {
			o.PaymentStatus = paymentStatus
			o.RawCallback = raw
			if businessStatus != nil {
				o.Status = *businessStatus
			}
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrDataNotFound
}

type fakeResolver struct {
	tc models.TenantContext
}

func (f *fakeResolver) Resolve(ctx context.Context, originDomain string) (models.TenantContext, error) {
	return f.tc, nil
}

type fakeBankReader struct {
	accounts map[uint64]*models.BankAccount
}

func (f *fakeBankReader) GetBankAccountByID(ctx context.Context, id uint64) (*models.BankAccount, error) {
	acct, ok := f.accounts[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return acct, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, order *models.Order, acct *models.BankAccount, tc models.TenantContext) *models.InvoiceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = f.calls + 1
	return &models.InvoiceRecord{OrderID: order.ID, Status: models.InvoiceStatusSent}
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakePublisher) Publish(ev notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeMailer struct {
	mu   sync.Mutex
	fail error
	sent []Mail
}

func (f *fakeMailer) Send(ctx context.Context, mail Mail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, mail)
	return nil
}

type fakeInvoiceRepo struct {
	mu      sync.Mutex
	nextSeq int64
	nextID  uint64
	recs    map[uint64]*models.InvoiceRecord
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{recs: map[uint64]*models.InvoiceRecord{}}
}

func (r *fakeInvoiceRepo) CreateInvoice(ctx context.Context, orderID uuid.UUID, location string) (*models.InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	r.nextID++
	rec := &models.InvoiceRecord{
		ID:        r.nextID,
		Seq:       r.nextSeq,
		OrderID:   orderID,
		Location:  location,
		Status:    models.InvoiceStatusPending,
		CreatedAt: time.Now(),
	}
	r.recs[rec.ID] = rec

	result := *rec
	return &result, nil
}

func (r *fakeInvoiceRepo) GetInvoiceByID(ctx context.Context, id uint64) (*models.InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	result := *rec
	return &result, nil
}

func (r *fakeInvoiceRepo) ListPendingInvoices(ctx context.Context) ([]models.InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := []models.InvoiceRecord{}
	for _, rec := range r.recs {
		if rec.Status == models.InvoiceStatusPending {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (r *fakeInvoiceRepo) MarkInvoiceSent(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok {
		return models.ErrDataNotFound
	}
	now := time.Now()
	rec.Status = models.InvoiceStatusSent
	rec.LastError = ""
	rec.SentAt = &now
	return nil
}

func (r *fakeInvoiceRepo) MarkInvoiceFailed(ctx context.Context, id uint64, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok {
		return models.ErrDataNotFound
	}
	rec.Status = models.InvoiceStatusPending
	rec.LastError = lastError
	return nil
}

var errMailDown = errors.New("smtp relay unreachable")
