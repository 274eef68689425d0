package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/halver/shopcore/internal/models"
	"go.uber.org/zap"
)

type WebhookService interface {
	Reconcile(ctx context.Context, payload map[string]string, raw []byte) error
}

// WebhookHandler ingests asynchronous payment-status callbacks from the
// provider. Malformed callbacks are rejected with a client error so the
// provider's retry behavior stays externally visible.
type WebhookHandler struct {
	svc    WebhookService
	logger *zap.Logger
}

// NewWebhookHandler creates new WebhookHandler instance
func NewWebhookHandler(svc WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, logger: logger}
}

// Receive accepts a provider callback, form encoded or JSON
// 200 — applied (or already applied)
// 400 — malformed or unrecognized callback
// 404 — no order matches the payment id
// 500 — internal error
func (wh *WebhookHandler) Receive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil || len(raw) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		payload, err := parseCallback(r.Header.Get("Content-Type"), raw)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if err := wh.svc.Reconcile(r.Context(), payload, raw); err != nil {
			switch {
			case errors.Is(err, models.ErrSignatureRejected):
				// credential problem on our side, keep it loud
				wh.logger.Error("provider rejected request signature", zap.Error(err))
				http.Error(w, "signature rejected", http.StatusBadRequest)
			case errors.Is(err, models.ErrInvalidCallback):
				http.Error(w, "unrecognized callback", http.StatusBadRequest)
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "unknown payment id", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func parseCallback(contentType string, raw []byte) (map[string]string, error) {
	payload := map[string]string{}

	if strings.Contains(contentType, "application/json") {
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			payload[k] = fmt.Sprint(v)
		}
		return payload, nil
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	for k := range values {
		payload[k] = values.Get(k)
	}

	return payload, nil
}
