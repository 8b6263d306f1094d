package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"receiptgen/config"
)

// Mailer sends rendered receipts over SMTP. One message per call, no retry,
// no queueing. Transport failures come back as errors, never as panics.
type Mailer struct {
	cfg    *config.Config
	logger *zap.Logger

	// send is swappable in tests
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg *config.Config, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
		send:   smtp.SendMail,
	}
}

// SendReceiptEmail delivers the rendered HTML document to the user's
// registered address with a brand-keyed subject.
func (m *Mailer) SendReceiptEmail(html, toAddress, brandName, productName string) error {
	subject := Subject(brandName, productName)
	msg := m.buildMessage(toAddress, subject, html)

	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	if err := m.send(m.cfg.GetSMTPAddress(), auth, m.cfg.FromEmail, []string{toAddress}, msg); err != nil {
		m.logger.Error("Failed to send receipt email",
			zap.String("to", toAddress),
			zap.String("brand", brandName),
			zap.Error(err))
		return fmt.Errorf("smtp send failed: %w", err)
	}

	m.logger.Info("Receipt email sent",
		zap.String("to", toAddress),
		zap.String("brand", brandName),
		zap.String("subject", subject))
	return nil
}

// Subject picks the email subject for a brand. Unknown brands get the
// generic processing subject.
func Subject(brandName, productName string) string {
	switch strings.ToLower(brandName) {
	case "apple":
		return fmt.Sprintf("🎉 Your order has been shipped from %s", brandName)
	case "stockx_new_delivered":
		if productName == "" {
			productName = "N/A"
		}
		return fmt.Sprintf("🎉 Order Delivered: %s", productName)
	default:
		return "🎉 We're processing your order"
	}
}

func (m *Mailer) buildMessage(to, subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.cfg.FromEmail, to, subject, body)
	return []byte(msg)
}
