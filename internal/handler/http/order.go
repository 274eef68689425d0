package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/halver/shopcore/internal/models"
)

type OrderService interface {
	Create(ctx context.Context, draft *models.Order, dedupKey string) (*models.Order, error)
	GetByNumber(ctx context.Context, num string) (*models.Order, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type addressReq struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type submitOrderReq struct {
	DedupKey       string      `json:"dedup_key"`
	ProductID      string      `json:"product_id"`
	Quantity       int64       `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	Currency       string      `json:"currency,omitempty"`
	CustomerEmail  string      `json:"customer_email"`
	Delivery       addressReq  `json:"delivery"`
	Billing        *addressReq `json:"billing,omitempty"`
	PaymentMethod  string      `json:"payment_method,omitempty"`
	OriginDomain   string      `json:"origin_domain,omitempty"`
}

type orderResp struct {
	Number           string `json:"number"`
	Status           string `json:"status"`
	SubtotalCents    int64  `json:"subtotal_cents"`
	DeliveryFeeCents int64  `json:"delivery_fee_cents"`
	TotalCents       int64  `json:"total_cents"`
	Currency         string `json:"currency"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
}

func toAddress(a addressReq) models.Address {
	return models.Address{
		Name:    a.Name,
		Street:  a.Street,
		Zip:     a.Zip,
		City:    a.City,
		Country: a.Country,
	}
}

// SubmitOrder accepts an order submission
// 201 — order created
// 200 — duplicate submission, original order returned
// 400 — malformed request body
// 422 — invalid order fields
// 503 — transient failure, safe to retry with the same dedup key
// 500 — internal error
func (oh *OrderHandler) SubmitOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := submitOrderReq{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		dedupKey := req.DedupKey
		if dedupKey == "" {
			dedupKey = r.Header.Get("X-Request-Id")
		}

		origin := req.OriginDomain
		if origin == "" {
			origin = r.Host
		}

		draft := models.Order{
			ProductID:      req.ProductID,
			Quantity:       req.Quantity,
			UnitPriceCents: req.UnitPriceCents,
			Currency:       req.Currency,
			CustomerEmail:  req.CustomerEmail,
			Delivery:       toAddress(req.Delivery),
			OriginDomain:   origin,
			PaymentMethod:  req.PaymentMethod,
		}
		if req.Billing != nil {
			draft.Billing = toAddress(*req.Billing)
		}

		order, err := oh.svc.Create(r.Context(), &draft, dedupKey)
		if err != nil {
			var retryable models.RetryableError
			switch {
			case errors.Is(err, models.ErrInvalidOrder):
				http.Error(w, "invalid order", http.StatusUnprocessableEntity)
			case errors.As(err, &retryable):
				http.Error(w, "temporary failure, retry with the same dedup key", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		code := http.StatusCreated
		if order.AlreadyProcessed {
			code = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(orderResp{
			Number:           order.Number,
			Status:           order.Status,
			SubtotalCents:    order.SubtotalCents,
			DeliveryFeeCents: order.DeliveryFeeCents,
			TotalCents:       order.TotalCents,
			Currency:         order.Currency,
			AlreadyProcessed: order.AlreadyProcessed,
		})
	}
}

// GetOrder returns order status by number
// 200 — found
// 404 — unknown order number
// 500 — internal error
func (oh *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		num := chi.URLParam(r, "number")

		order, err := oh.svc.GetByNumber(r.Context(), num)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(orderResp{
			Number:           order.Number,
			Status:           order.Status,
			SubtotalCents:    order.SubtotalCents,
			DeliveryFeeCents: order.DeliveryFeeCents,
			TotalCents:       order.TotalCents,
			Currency:         order.Currency,
		})
	}
}
