package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// InvoiceService is the slice of the invoice service the worker drives
type InvoiceService interface {
	CollectPending(ctx context.Context, invoiceCh chan<- uint64) error
	RetryPending(ctx context.Context, invoiceCh <-chan uint64)
}

// InvoiceProcessor periodically retries pending invoice deliveries
type InvoiceProcessor struct {
	svc      InvoiceService
	interval time.Duration
	logger   *zap.Logger
}

// NewInvoiceProcessor creates new invoice processor
func NewInvoiceProcessor(svc InvoiceService, interval time.Duration, logger *zap.Logger) *InvoiceProcessor {
	return &InvoiceProcessor{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}
}

// ProcessInvoices runs until the context is cancelled
func (ip *InvoiceProcessor) ProcessInvoices(ctx context.Context) {
	invoices := make(chan uint64, 10)

	go ip.svc.RetryPending(ctx, invoices)

	ticker := time.NewTicker(ip.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ip.logger.Debug("invoice processor is done")
			return
		case <-ticker.C:
			if err := ip.svc.CollectPending(ctx, invoices); err != nil {
				ip.logger.Error("error collecting pending invoices", zap.Error(err))
			}
		}
	}
}
