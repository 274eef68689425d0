package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/gateway"
	"github.com/halver/shopcore/internal/models"
)

type PaymentService interface {
	Initiate(ctx context.Context, orderID uuid.UUID) (*gateway.Session, error)
	CheckStatus(ctx context.Context, paymentID string) (string, error)
}

// PaymentHandler represents HTTP handler for payment-related requests
type PaymentHandler struct {
	svc PaymentService
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Initiate starts a payment session and returns the self-submitting
// redirect artifact
// 200 — artifact returned
// 400 — malformed order id
// 404 — unknown order
// 409 — order not payable in its current status
// 503 — gateway not configured
// 500 — internal error
func (ph *PaymentHandler) Initiate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			http.Error(w, "bad order id", http.StatusBadRequest)
			return
		}

		session, err := ph.svc.Initiate(r.Context(), orderID)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrInvalidTransition):
				http.Error(w, "order is not payable", http.StatusConflict)
			case errors.Is(err, models.ErrGatewayNotConfigured):
				http.Error(w, "payment gateway unavailable", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(session.HTML))
	}
}

type paymentStatusResp struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// Status returns the persisted payment status for a session
// 200 — status returned
// 404 — unknown payment id
// 500 — internal error
func (ph *PaymentHandler) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID := chi.URLParam(r, "paymentID")

		status, err := ph.svc.CheckStatus(r.Context(), paymentID)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "payment not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(paymentStatusResp{
			PaymentID: paymentID,
			Status:    status,
		})
	}
}
