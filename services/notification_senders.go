package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EmailSender delivers one composed message.
type EmailSender interface {
	Name() string
	Send(ctx context.Context, msg *models.EmailMessage) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends multipart/alternative mail. Port 465 uses implicit TLS; any other port goes
// through smtp.SendMail, which upgrades with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Name() string {
	return "smtp"
}

func (s *SMTPSender) Send(ctx context.Context, msg *models.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := buildMIMEMessage(s.cfg.From, msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.Port == 465 {
		return s.sendWithTLS(addr, auth, msg.To, raw)
	}
	return s.sendMail(addr, auth, s.cfg.From, []string{msg.To}, raw)
}

func (s *SMTPSender) sendWithTLS(addr string, auth smtp.Auth, to string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT command failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}
	return client.Quit()
}

func buildMIMEMessage(from string, msg *models.EmailMessage) ([]byte, error) {
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(from, "\r\n") {
		return nil, errors.New("email address contains a line break")
	}

	boundary := "ipo-" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes(), nil
}

// WebhookSender posts each message as JSON to an HTTP endpoint.
type WebhookSender struct {
	url        string
	client     *http.Client
	maxRetries int
}

func NewWebhookSender(url string, clients *shared.HTTPClientFactory, maxRetries int) *WebhookSender {
	if clients == nil {
		clients = shared.NewHTTPClientFactory(10 * time.Second)
	}
	return &WebhookSender{
		url:        url,
		client:     clients.Client(0),
		maxRetries: maxRetries,
	}
}

func (w *WebhookSender) Name() string {
	return "webhook"
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

func (w *WebhookSender) Send(ctx context.Context, msg *models.EmailMessage) error {
	body, err := json.Marshal(webhookPayload{
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := shared.ExecuteHTTPRequestWithRetry(ctx, w.client, req, w.maxRetries)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// LogSender only logs. Used when no transport is configured.
type LogSender struct{}

func (LogSender) Name() string {
	return "log"
}

func (LogSender) Send(_ context.Context, msg *models.EmailMessage) error {
	logrus.WithFields(logrus.Fields{
		"component": "LogSender",
		"to":        msg.To,
		"subject":   msg.Subject,
	}).Info("Email delivery not configured, message logged only")
	return nil
}

// MultiSender fans a message out to every sender and fails only if all of them fail.
type MultiSender []EmailSender

func (m MultiSender) Name() string {
	names := make([]string, 0, len(m))
	for _, s := range m {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (m MultiSender) Send(ctx context.Context, msg *models.EmailMessage) error {
	var errs []error
	for _, sender := range m {
		if err := sender.Send(ctx, msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "MultiSender",
				"sender":    sender.Name(),
				"to":        msg.To,
			}).WithError(err).Warn("Sender failed")
			errs = append(errs, fmt.Errorf("%s: %w", sender.Name(), err))
		}
	}
	if len(m) > 0 && len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
