// Package channel defines the contract every delivery provider implements
// and how their settings are resolved.
package channel

import (
	"context"

	"github.com/kilianp07/fleetremind/core/model"
)

// Message is one rendered notification addressed to a single recipient.
type Message struct {
	ReminderID string
	Recipient  string
	Subject    string
	HTML       string
	Text       string
}

// Sender delivers messages on one channel. Implementations must validate
// settings with Require before contacting their provider.
type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, settings model.ChannelSettings, msg Message) error
}

// SenderFunc adapts a function into a Sender.
type SenderFunc struct {
	Ch model.Channel
	Fn func(ctx context.Context, settings model.ChannelSettings, msg Message) error
}

func (f SenderFunc) Channel() model.Channel { return f.Ch }

func (f SenderFunc) Send(ctx context.Context, settings model.ChannelSettings, msg Message) error {
	return f.Fn(ctx, settings, msg)
}

// Require checks the settings needed by ch and reports the missing ones.
func Require(ch model.Channel, s model.ChannelSettings) error {
	var missing []string
	check := func(name, v string) {
		if v == "" {
			missing = append(missing, name)
		}
	}
	switch ch {
	case model.ChannelEmail:
		check("service_id", s.ServiceID)
		check("template_id", s.TemplateID)
		check("public_key", s.PublicKey)
		check("sender_email", s.SenderEmail)
	case model.ChannelWhatsApp:
		check("api_key", s.APIKey)
		check("sender", s.Sender)
	case model.ChannelTelegram:
		check("bot_token", s.BotToken)
	}
	if len(missing) > 0 {
		return Incomplete(ch, missing...)
	}
	return nil
}
