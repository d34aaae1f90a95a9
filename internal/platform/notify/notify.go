// Package notify delivers reminder messages to clients.
package notify

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/logctx"
)

const (
	ChannelWhatsAppMock = "whatsapp_mock"
	ChannelEmail        = "email"
)

// Dispatcher sends one message and reports whether it was accepted. There
// are no retries.
type Dispatcher interface {
	Send(ctx context.Context, contact, message string) bool
	// Recipient picks the client address this channel delivers to.
	Recipient(c *models.Client) string
	Channel() string
}

// WhatsAppMock only logs the message. It stands in for a WhatsApp gateway.
type WhatsAppMock struct {
	l *zap.SugaredLogger
}

func NewWhatsAppMock(l *zap.SugaredLogger) *WhatsAppMock {
	return &WhatsAppMock{l: l}
}

func (w *WhatsAppMock) Channel() string { return ChannelWhatsAppMock }

func (w *WhatsAppMock) Recipient(c *models.Client) string { return c.Contact }

func (w *WhatsAppMock) Send(ctx context.Context, contact, message string) bool {
	l := logctx.FromCtx(ctx, w.l)
	if strings.TrimSpace(contact) == "" {
		l.Warnw("whatsapp mock: empty contact, message dropped")
		return false
	}
	l.Infow("whatsapp mock: message sent", "to", contact, "message", message)
	return true
}

// Email sends plain text mail over SMTP.
type Email struct {
	l       *zap.SugaredLogger
	from    string
	subject string
	send    func(m *gomail.Message) error
}

const defaultEmailSubject = "Il tuo abbonamento IPTV sta per scadere"

func NewEmail(l *zap.SugaredLogger, cfg config.SMTPConfig) *Email {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &Email{l: l, from: cfg.From, subject: defaultEmailSubject, send: func(m *gomail.Message) error {
		return d.DialAndSend(m)
	}}
}

func (e *Email) Channel() string { return ChannelEmail }

func (e *Email) Recipient(c *models.Client) string { return c.Email }

func (e *Email) Send(ctx context.Context, contact, message string) bool {
	l := logctx.FromCtx(ctx, e.l)
	if !strings.Contains(contact, "@") {
		l.Warnw("email: invalid recipient, message dropped", "to", contact)
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", contact)
	m.SetHeader("Subject", e.subject)
	m.SetBody("text/plain", message)

	if err := e.send(m); err != nil {
		l.Errorw("email: send failed", "to", contact, "error", err)
		return false
	}
	l.Infow("email: message sent", "to", contact)
	return true
}

// New picks the dispatcher configured in notify.channel.
func New(l *zap.SugaredLogger, cfg *config.Config) (Dispatcher, error) {
	switch cfg.Notify.Channel {
	case "", ChannelWhatsAppMock:
		return NewWhatsAppMock(l), nil
	case ChannelEmail:
		return NewEmail(l, cfg.Notify.SMTP), nil
	}
	return nil, errs.Configuration("notify.channel", "unknown channel "+cfg.Notify.Channel)
}

var Module = fx.Options(
	fx.Provide(New),
)
