package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const pgErrUniqueViolationCode = "23505"

const (
	orderColumns = `id, number, dedup_key, product_id, quantity, unit_price_cents,
						subtotal_cents, delivery_fee_cents, total_cents, currency, customer_email,
						delivery_name, delivery_street, delivery_zip, delivery_city, delivery_country,
						billing_name, billing_street, billing_zip, billing_city, billing_country,
						origin_domain, shop_id, bank_account_id, payment_method, payment_id,
						payment_status, raw_callback, redirect_url, status, hidden, created_at, updated_at`

	insertOrderQuery = `
						INSERT INTO orders (id, number, dedup_key, product_id, quantity, unit_price_cents,
							subtotal_cents, delivery_fee_cents, total_cents, currency, customer_email,
							delivery_name, delivery_street, delivery_zip, delivery_city, delivery_country,
							billing_name, billing_street, billing_zip, billing_city, billing_country,
							origin_domain, shop_id, bank_account_id, payment_method, status)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
							$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
						ON CONFLICT (dedup_key) DO NOTHING
						RETURNING ` + orderColumns

	selectOrderByIDQuery        = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	selectOrderByNumberQuery    = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`
	selectOrderByDedupKeyQuery  = `SELECT ` + orderColumns + ` FROM orders WHERE dedup_key = $1`
	selectOrderByPaymentIDQuery = `SELECT ` + orderColumns + ` FROM orders WHERE payment_id = $1`

	updateOrderStatusQuery = `
						UPDATE orders
						SET status = $1, updated_at = now()
						WHERE id = $2
`
	updateOrderHiddenQuery = `
						UPDATE orders
						SET hidden = $1, updated_at = now()
						WHERE id = $2
`
	updatePaymentSessionQuery = `
						UPDATE orders
						SET payment_method = $1, payment_id = $2, payment_status = $3,
							redirect_url = $4, updated_at = now()
						WHERE id = $5
`
	applyPaymentQuery = `
						UPDATE orders
						SET payment_status = $2, raw_callback = $3,
							status = COALESCE($4, status), updated_at = now()
						WHERE payment_id = $1
`
)

// OrderRepository provides access to order rows
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := models.Order{}
	err := row.Scan(&order.ID, &order.Number, &order.DedupKey, &order.ProductID, &order.Quantity,
		&order.UnitPriceCents, &order.SubtotalCents, &order.DeliveryFeeCents, &order.TotalCents,
		&order.Currency, &order.CustomerEmail,
		&order.Delivery.Name, &order.Delivery.Street, &order.Delivery.Zip, &order.Delivery.City, &order.Delivery.Country,
		&order.Billing.Name, &order.Billing.Street, &order.Billing.Zip, &order.Billing.City, &order.Billing.Country,
		&order.OriginDomain, &order.ShopID, &order.BankAccountID, &order.PaymentMethod, &order.PaymentID,
		&order.PaymentStatus, &order.RawCallback, &order.RedirectURL, &order.Status, &order.Hidden,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder inserts a new order. A dedup-key collision is not an error:
// the winner of the original submission is returned with AlreadyProcessed set.
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	row := or.db.QueryRow(ctx, insertOrderQuery,
		order.ID, order.Number, order.DedupKey, order.ProductID, order.Quantity, order.UnitPriceCents,
		order.SubtotalCents, order.DeliveryFeeCents, order.TotalCents, order.Currency, order.CustomerEmail,
		order.Delivery.Name, order.Delivery.Street, order.Delivery.Zip, order.Delivery.City, order.Delivery.Country,
		order.Billing.Name, order.Billing.Street, order.Billing.Zip, order.Billing.City, order.Billing.Country,
		order.OriginDomain, order.ShopID, order.BankAccountID, order.PaymentMethod, order.Status)

	created, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// dedup key already exists, return the original record
			winner, err := or.GetOrderByDedupKey(ctx, order.DedupKey)
			if err != nil {
				return nil, err
			}
			winner.AlreadyProcessed = true
			return winner, nil
		}
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			// some other unique column collided (order number)
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// GetOrderByID returns order by internal id
func (or *OrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetOrderByNumber returns order by human-facing number
func (or *OrderRepository) GetOrderByNumber(ctx context.Context, num string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByNumberQuery, num))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetOrderByDedupKey returns order by its deduplication key
func (or *OrderRepository) GetOrderByDedupKey(ctx context.Context, key string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByDedupKeyQuery, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetOrderByPaymentID returns order by the external payment session id
func (or *OrderRepository) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByPaymentIDQuery, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus updates the business status of an order
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error {
	cmd, err := or.db.Exec(ctx, updateOrderStatusQuery, status, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// SetOrderHidden toggles the visibility flag. Orders are never deleted.
func (or *OrderRepository) SetOrderHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	cmd, err := or.db.Exec(ctx, updateOrderHiddenQuery, hidden, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// SetPaymentSession persists the payment session fields assigned at initiation
func (or *OrderRepository) SetPaymentSession(ctx context.Context, id uuid.UUID, method, paymentID, status, redirectURL string) error {
	cmd, err := or.db.Exec(ctx, updatePaymentSessionQuery, method, paymentID, status, redirectURL, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// ApplyPayment updates payment fields looked up by payment id. A non-nil
// businessStatus also moves the order's business status.
func (or *OrderRepository) ApplyPayment(ctx context.Context, paymentID, paymentStatus string, raw []byte, businessStatus *string) error {
	cmd, err := or.db.Exec(ctx, applyPaymentQuery, paymentID, paymentStatus, raw, businessStatus)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}
