package service

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/models"
	"go.uber.org/zap"
)

// InvoiceRepository is interface for interacting with invoice records
type InvoiceRepository interface {
	// CreateInvoice inserts a new pending record with the next sequence number
	CreateInvoice(ctx context.Context, orderID uuid.UUID, location string) (*models.InvoiceRecord, error)
	// GetInvoiceByID returns record by id
	GetInvoiceByID(ctx context.Context, id uint64) (*models.InvoiceRecord, error)
	// ListPendingInvoices returns records awaiting delivery
	ListPendingInvoices(ctx context.Context) ([]models.InvoiceRecord, error)
	// MarkInvoiceSent marks a record as delivered
	MarkInvoiceSent(ctx context.Context, id uint64) error
	// MarkInvoiceFailed records a delivery failure, record stays pending
	MarkInvoiceFailed(ctx context.Context, id uint64, lastError string) error
}

// Mail is an outbound message handed to the mail collaborator
type Mail struct {
	To             string
	Subject        string
	HTMLBody       string
	Attachment     []byte
	AttachmentName string
}

// Mailer is the outbound mail collaborator. Delivery failures are
// reported back but never awaited by the order-creation path.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<body>
<h1>{{.ShopName}}</h1>
<p>Invoice no. {{.Seq}} for order {{.Number}}</p>
<table>
<tr><td>{{.ProductID}} x {{.Quantity}}</td><td>{{.Subtotal}} {{.Currency}}</td></tr>
<tr><td>Delivery</td><td>{{.DeliveryFee}} {{.Currency}}</td></tr>
<tr><td><b>Total</b></td><td><b>{{.Total}} {{.Currency}}</b></td></tr>
</table>
{{- if .HasAccount}}
<p>Please transfer to:<br>
{{.Holder}}<br>
{{.BankName}}<br>
IBAN: {{.IBAN}}<br>
BIC: {{.BIC}}</p>
{{- end}}
</body>
</html>
`))

// localized mail subject and body
var invoiceMailTexts = map[string]struct {
	Subject string
	Body    string
}{
	"en": {
		Subject: "Your invoice for order %s",
		Body:    "<p>Thank you for your order %s. Your invoice is attached.</p>",
	},
	"de": {
		Subject: "Ihre Rechnung zur Bestellung %s",
		Body:    "<p>Vielen Dank für Ihre Bestellung %s. Ihre Rechnung finden Sie im Anhang.</p>",
	},
}

// InvoiceService renders invoices and hands them to the mail
// collaborator. Every failure here is downgraded to a pending record,
// never surfaced to the order-creation path.
type InvoiceService struct {
	repo    InvoiceRepository
	orders  OrderRepository
	tenants TenantResolver
	acct    BankAccountReader
	mailer  Mailer
	logger  *zap.Logger
}

// NewInvoiceService creates new InvoiceService instance
func NewInvoiceService(repo InvoiceRepository, orders OrderRepository, tenants TenantResolver,
	acct BankAccountReader, mailer Mailer, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		repo:    repo,
		orders:  orders,
		tenants: tenants,
		acct:    acct,
		mailer:  mailer,
		logger:  logger,
	}
}

// Dispatch renders and sends the invoice for a committed order. The
// returned record's status distinguishes sent from pending; the order
// itself is never touched.
func (is *InvoiceService) Dispatch(ctx context.Context, order *models.Order, acct *models.BankAccount, tc models.TenantContext) *models.InvoiceRecord {
	location := "invoices/" + order.Number + ".html"

	rec, err := is.repo.CreateInvoice(ctx, order.ID, location)
	if err != nil {
		is.logger.Error("invoice record creation failed",
			zap.String("order", order.Number), zap.Error(err))
		return nil
	}

	if err := is.send(ctx, rec, order, acct, tc); err != nil {
		is.logger.Warn("invoice delivery failed, record left pending",
			zap.String("order", order.Number),
			zap.Uint64("invoice", rec.ID),
			zap.Error(err))
		if err := is.repo.MarkInvoiceFailed(ctx, rec.ID, err.Error()); err != nil {
			is.logger.Error("marking invoice failed", zap.Uint64("invoice", rec.ID), zap.Error(err))
		}
		rec.Status = models.InvoiceStatusPending
		rec.LastError = err.Error()
		return rec
	}

	rec.Status = models.InvoiceStatusSent
	return rec
}

// Retry attempts delivery of a pending invoice again. Already-sent
// records are a no-op.
func (is *InvoiceService) Retry(ctx context.Context, id uint64) error {
	rec, err := is.repo.GetInvoiceByID(ctx, id)
	if err != nil {
		return err
	}

	if rec.Status == models.InvoiceStatusSent {
		return nil
	}

	order, err := is.orders.GetOrderByID(ctx, rec.OrderID)
	if err != nil {
		return err
	}

	tc, err := is.tenants.Resolve(ctx, order.OriginDomain)
	if err != nil {
		return err
	}

	var acct *models.BankAccount
	if order.BankAccountID != nil {
		acct, err = is.acct.GetBankAccountByID(ctx, *order.BankAccountID)
		if err != nil {
			return err
		}
	}

	if err := is.send(ctx, rec, order, acct, tc); err != nil {
		if markErr := is.repo.MarkInvoiceFailed(ctx, rec.ID, err.Error()); markErr != nil {
			is.logger.Error("marking invoice failed", zap.Uint64("invoice", rec.ID), zap.Error(markErr))
		}
		return err
	}

	return nil
}

// CollectPending writes pending invoice ids to the channel for retry
func (is *InvoiceService) CollectPending(ctx context.Context, invoiceCh chan<- uint64) error {
	recs, err := is.repo.ListPendingInvoices(ctx)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		invoiceCh <- rec.ID
	}

	return nil
}

// RetryPending consumes invoice ids and attempts delivery
func (is *InvoiceService) RetryPending(ctx context.Context, invoiceCh <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			is.logger.Debug("invoice retry is done")
			return
		case id, ok := <-invoiceCh:
			if !ok {
				return
			}
			if err := is.Retry(ctx, id); err != nil {
				is.logger.Warn("invoice retry failed", zap.Uint64("invoice", id), zap.Error(err))
			}
		}
	}
}

func (is *InvoiceService) send(ctx context.Context, rec *models.InvoiceRecord, order *models.Order, acct *models.BankAccount, tc models.TenantContext) error {
	doc, err := renderInvoice(rec, order, acct, tc)
	if err != nil {
		return err
	}

	texts, ok := invoiceMailTexts[localeKey(tc.Locale)]
	if !ok {
		texts = invoiceMailTexts["en"]
	}

	mail := Mail{
		To:             order.CustomerEmail,
		Subject:        fmt.Sprintf(texts.Subject, order.Number),
		HTMLBody:       fmt.Sprintf(texts.Body, order.Number),
		Attachment:     []byte(doc),
		AttachmentName: fmt.Sprintf("invoice-%d.html", rec.Seq),
	}

	if err := is.mailer.Send(ctx, mail); err != nil {
		return err
	}

	return is.repo.MarkInvoiceSent(ctx, rec.ID)
}

func renderInvoice(rec *models.InvoiceRecord, order *models.Order, acct *models.BankAccount, tc models.TenantContext) (string, error) {
	data := struct {
		ShopName    string
		Seq         int64
		Number      string
		ProductID   string
		Quantity    int64
		Subtotal    string
		DeliveryFee string
		Total       string
		Currency    string
		HasAccount  bool
		Holder      string
		BankName    string
		IBAN        string
		BIC         string
	}{
		ShopName:    tc.ShopName,
		Seq:         rec.Seq,
		Number:      order.Number,
		ProductID:   order.ProductID,
		Quantity:    order.Quantity,
		Subtotal:    FormatCents(order.SubtotalCents),
		DeliveryFee: FormatCents(order.DeliveryFeeCents),
		Total:       FormatCents(order.TotalCents),
		Currency:    order.Currency,
	}

	if acct != nil {
		data.HasAccount = true
		data.Holder = acct.Holder
		if acct.AnyName && tc.ShopName != "" {
			data.Holder = tc.ShopName
		}
		data.BankName = acct.BankName
		data.IBAN = GroupIBAN(acct.IBAN)
		data.BIC = acct.BIC
	}

	var sb strings.Builder
	if err := invoiceTmpl.Execute(&sb, data); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// FormatCents renders a minor-unit amount as a decimal string
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// GroupIBAN formats an IBAN in blocks of four for display
func GroupIBAN(iban string) string {
	compact := strings.ReplaceAll(iban, " ", "")

	var sb strings.Builder
	for i, r := range compact {
		if i > 0 && i%4 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

func localeKey(locale string) string {
	if len(locale) >= 2 {
		return strings.ToLower(locale[:2])
	}
	return "en"
}
