package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/models"
	"github.com/halver/shopcore/internal/notifier"
	"go.uber.org/zap"
)

type AuthService interface {
	Login(ctx context.Context, login, password string) (string, error)
}

type OperatorOrderService interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Hide(ctx context.Context, id uuid.UUID) error
	Unhide(ctx context.Context, id uuid.UUID) error
}

type InvoiceService interface {
	Retry(ctx context.Context, id uint64) error
}

// OperatorHandler represents HTTP handlers for the back-office surface
type OperatorHandler struct {
	auth     AuthService
	orders   OperatorOrderService
	invoices InvoiceService
	bus      *notifier.Bus
	logger   *zap.Logger
}

// NewOperatorHandler creates new OperatorHandler instance
func NewOperatorHandler(auth AuthService, orders OperatorOrderService, invoices InvoiceService,
	bus *notifier.Bus, logger *zap.Logger) *OperatorHandler {
	return &OperatorHandler{
		auth:     auth,
		orders:   orders,
		invoices: invoices,
		bus:      bus,
		logger:   logger,
	}
}

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login authenticates an operator and sets the auth cookie
// 200 — authenticated
// 400 — malformed request
// 401 — invalid credentials
// 500 — internal error
func (oh *OperatorHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := loginReq{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		token, err := oh.auth.Login(r.Context(), req.Login, req.Password)
		if err != nil {
			if errors.Is(err, models.ErrInvalidCredentials) {
				http.Error(w, "invalid login or password", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			Path:     "/",
			HttpOnly: true,
		})
		w.WriteHeader(http.StatusOK)
	}
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateOrderStatus applies an operator status transition
// 200 — updated
// 400 — malformed request
// 404 — unknown order
// 409 — transition not allowed
// 500 — internal error
func (oh *OperatorHandler) UpdateOrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			http.Error(w, "bad order id", http.StatusBadRequest)
			return
		}

		req := updateStatusReq{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if err := oh.orders.UpdateStatus(r.Context(), id, req.Status); err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrInvalidTransition):
				http.Error(w, "invalid transition", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		oh.logger.Info("operator status change",
			zap.String("operator", payload.Login),
			zap.String("order", id.String()),
			zap.String("status", req.Status))

		w.WriteHeader(http.StatusOK)
	}
}

// HideOrder flags an order as hidden
func (oh *OperatorHandler) HideOrder() http.HandlerFunc {
	return oh.setHidden(true)
}

// UnhideOrder clears the hidden flag
func (oh *OperatorHandler) UnhideOrder() http.HandlerFunc {
	return oh.setHidden(false)
}

func (oh *OperatorHandler) setHidden(hidden bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			http.Error(w, "bad order id", http.StatusBadRequest)
			return
		}

		if hidden {
			err = oh.orders.Hide(r.Context(), id)
		} else {
			err = oh.orders.Unhide(r.Context(), id)
		}
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// RetryInvoice attempts delivery of a pending invoice again
// 200 — delivered or already sent
// 404 — unknown invoice
// 502 — delivery failed again, record stays pending
func (oh *OperatorHandler) RetryInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "invoiceID"), 10, 64)
		if err != nil {
			http.Error(w, "bad invoice id", http.StatusBadRequest)
			return
		}

		if err := oh.invoices.Retry(r.Context(), id); err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "invoice not found", http.StatusNotFound)
				return
			}
			http.Error(w, "delivery failed", http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

type eventResp struct {
	Op        string `json:"op"`
	OrderID   string `json:"order_id"`
	Number    string `json:"number"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// Events streams order mutations to the operations dashboard as
// server-sent events
func (oh *OperatorHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		id, ch := oh.bus.Subscribe()
		defer oh.bus.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				body, err := json.Marshal(eventResp{
					Op:        string(ev.Op),
					OrderID:   ev.OrderID.String(),
					Number:    ev.Number,
					Status:    ev.Status,
					UpdatedAt: ev.UpdatedAt.UTC().Format(time.RFC3339),
				})
				if err != nil {
					oh.logger.Error("marshal event", zap.Error(err))
					continue
				}
				w.Write([]byte("data: "))
				w.Write(body)
				w.Write([]byte("\n\n"))
				flusher.Flush()
			}
		}
	}
}
