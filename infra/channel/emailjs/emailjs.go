// Package emailjs sends reminder e-mails through an EmailJS-compatible REST API.
package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

// DefaultEndpoint is the public EmailJS send endpoint.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// Config configures the HTTP client.
type Config struct {
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

var _ channel.Sender = (*Sender)(nil)

// Sender implements channel.Sender for e-mail.
type Sender struct {
	endpoint string
	http     *http.Client
}

// New builds a Sender. Zero values fall back to the public endpoint and a 10s timeout.
func New(cfg Config) *Sender {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	timeout := 10 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Sender{endpoint: cfg.Endpoint, http: &http.Client{Timeout: timeout}}
}

type request struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

func (s *Sender) Channel() model.Channel { return model.ChannelEmail }

// Send posts one e-mail to the provider.
func (s *Sender) Send(ctx context.Context, settings model.ChannelSettings, msg channel.Message) error {
	if err := channel.Require(model.ChannelEmail, settings); err != nil {
		return err
	}
	if !model.IsEmail(msg.Recipient) {
		return channel.InvalidRecipient(model.ChannelEmail, msg.Recipient)
	}
	fromName := settings.SenderName
	if fromName == "" {
		fromName = settings.SenderEmail
	}
	payload := request{
		ServiceID:  settings.ServiceID,
		TemplateID: settings.TemplateID,
		UserID:     settings.PublicKey,
		TemplateParams: map[string]string{
			"to_email":     msg.Recipient,
			"from_email":   settings.SenderEmail,
			"from_name":    fromName,
			"reply_to":     settings.SenderEmail,
			"subject":      msg.Subject,
			"message":      msg.Text,
			"message_html": msg.HTML,
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return &channel.ProviderError{Channel: model.ChannelEmail, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &channel.ProviderError{
			Channel:    model.ChannelEmail,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("emailjs send failed: %s", resp.Status),
		}
	}
	return nil
}
