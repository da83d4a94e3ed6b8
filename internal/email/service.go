package email

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

var ErrNoRecipient = errors.New("notification has no recipient")

// Message is one rendered email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a rendered email
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

// SMTPSender sends through gomail, bounded by the context deadline
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", strings.TrimSpace(s.cfg.From))
	msg.SetHeader("To", strings.TrimSpace(m.To))
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.SSL = s.cfg.UseTLS
	if s.cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	}

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(msg)
	}()

	wait := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until > 0 && until < wait {
			wait = until
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return context.DeadlineExceeded
	}
}

// Consumer turns notification payloads from the broker into emails
type Consumer struct {
	sender  Sender
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewConsumer(sender Sender, log *logger.Logger, m *metrics.Metrics) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{sender: sender, logger: log, metrics: m}
}

// Handle decodes, renders and sends one notification payload
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var msg model.NotificationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return ErrNoRecipient
	}

	subject, body, err := Render(msg)
	if err != nil {
		c.observe(msg.Template, "error")
		return err
	}
	if err := c.sender.Send(ctx, Message{To: msg.Recipient, Subject: subject, Body: body}); err != nil {
		c.observe(msg.Template, "error")
		return err
	}
	c.observe(msg.Template, "sent")
	c.logger.Debug("notification emailed", "template", msg.Template)
	return nil
}

func (c *Consumer) observe(template, result string) {
	if c.metrics != nil {
		c.metrics.EmailsSent.WithLabelValues(template, result).Inc()
	}
}
