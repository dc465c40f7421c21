package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pobyzaarif/goshortcute"
	"go.uber.org/zap"

	"ethio-home/internal/core/config"
)

type Mailer interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, message string) error
}

// New 按 mail.provider 选择实现
func New(c config.Mail, l *zap.Logger) Mailer {
	if c.Provider == "mailjet" {
		return NewMailjet(c)
	}
	return LogMailer{Log: l}
}

type Mailjet struct {
	cfg    config.Mail
	client *http.Client
}

func NewMailjet(c config.Mail) *Mailjet {
	return &Mailjet{cfg: c, client: &http.Client{Timeout: 5 * time.Second}}
}

type address struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

type message struct {
	From     address   `json:"From"`
	To       []address `json:"To"`
	Subject  string    `json:"Subject"`
	TextPart string    `json:"TextPart"`
	HTMLPart string    `json:"HTMLPart"`
}

type sendPayload struct {
	Messages []message `json:"Messages"`
}

func (m *Mailjet) SendEmail(ctx context.Context, toName, toEmail, subject, body string) error {
	payload := sendPayload{Messages: []message{{
		From:     address{Email: m.cfg.SenderEmail, Name: m.cfg.SenderName},
		To:       []address{{Email: toEmail, Name: toName}},
		Subject:  subject,
		TextPart: body,
		HTMLPart: body,
	}}}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mailjet payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v3.1/send", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+goshortcute.StringtoBase64Encode(m.cfg.Username+":"+m.cfg.Password))

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("mailer returned %d: %s", res.StatusCode, bytes.TrimSpace(msg))
}

// LogMailer 本地开发：只打日志
type LogMailer struct{ Log *zap.Logger }

func (l LogMailer) SendEmail(_ context.Context, toName, toEmail, subject, body string) error {
	if l.Log != nil {
		l.Log.Info("email (log provider)",
			zap.String("to", toEmail), zap.String("name", toName),
			zap.String("subject", subject), zap.String("body", body))
	}
	return nil
}
