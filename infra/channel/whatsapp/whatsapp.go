// Package whatsapp sends reminders through a WhatsApp gateway. The HTTP
// gateway speaks the common form-post API of Indonesian WhatsApp providers;
// the Twilio gateway uses the Twilio Messages API.
package whatsapp

import (
	"context"
	"fmt"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

// Gateway delivers one text message to a normalised phone number.
type Gateway interface {
	Deliver(ctx context.Context, apiKey, sender, to, text string) error
}

// Config selects and configures the gateway.
type Config struct {
	// Provider is "http" (default) or "twilio".
	Provider       string `json:"provider"`
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// AccountSID is required by the twilio provider; the channel api_key is
	// used as its auth token.
	AccountSID string `json:"account_sid"`
}

var _ channel.Sender = (*Sender)(nil)

// Sender implements channel.Sender for WhatsApp.
type Sender struct {
	gw Gateway
}

// New builds a Sender with the gateway selected by cfg.
func New(cfg Config) (*Sender, error) {
	switch cfg.Provider {
	case "", "http":
		return &Sender{gw: NewHTTPGateway(cfg)}, nil
	case "twilio":
		gw, err := NewTwilioGateway(cfg)
		if err != nil {
			return nil, err
		}
		return &Sender{gw: gw}, nil
	default:
		return nil, fmt.Errorf("whatsapp: unknown provider %q", cfg.Provider)
	}
}

// NewWithGateway builds a Sender around gw.
func NewWithGateway(gw Gateway) *Sender { return &Sender{gw: gw} }

func (s *Sender) Channel() model.Channel { return model.ChannelWhatsApp }

// Send delivers the plain-text body, prefixed by the subject.
func (s *Sender) Send(ctx context.Context, settings model.ChannelSettings, msg channel.Message) error {
	if !Enabled {
		return fmt.Errorf("whatsapp: %w", channel.ErrFeatureDisabled)
	}
	if err := channel.Require(model.ChannelWhatsApp, settings); err != nil {
		return err
	}
	to, ok := model.NormalizePhone(msg.Recipient)
	if !ok {
		return channel.InvalidRecipient(model.ChannelWhatsApp, msg.Recipient)
	}
	text := msg.Text
	if msg.Subject != "" {
		text = "*" + msg.Subject + "*\n\n" + text
	}
	return s.gw.Deliver(ctx, settings.APIKey, settings.Sender, to, text)
}
