// Package mailer holds the outbound-mail collaborator used by invoice
// dispatch. The actual transport lives outside the core; LogMailer is
// the in-process stand-in wired by default.
package mailer

import (
	"context"

	"github.com/halver/shopcore/internal/service"
	"go.uber.org/zap"
)

// LogMailer records outbound mail instead of sending it
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates new LogMailer instance
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message and reports success
func (m *LogMailer) Send(ctx context.Context, mail service.Mail) error {
	m.logger.Info("outbound mail",
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject),
		zap.String("attachment", mail.AttachmentName),
		zap.Int("attachment_bytes", len(mail.Attachment)))
	return nil
}
