package config

import (
	"fmt"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/infra/channel/emailjs"
	"github.com/kilianp07/fleetremind/infra/channel/telegram"
	"github.com/kilianp07/fleetremind/infra/channel/whatsapp"
)

// ChannelsConfig holds the system defaults of every channel. Settings saved
// by users override them field by field.
type ChannelsConfig struct {
	Email    EmailChannelConfig    `json:"email"`
	WhatsApp WhatsAppChannelConfig `json:"whatsapp"`
	Telegram TelegramChannelConfig `json:"telegram"`
}

type EmailChannelConfig struct {
	Enabled        *bool  `json:"enabled"`
	ServiceID      string `json:"service_id"`
	TemplateID     string `json:"template_id"`
	PublicKey      string `json:"public_key"`
	SenderEmail    string `json:"sender_email" validate:"omitempty,email"`
	SenderName     string `json:"sender_name"`
	Endpoint       string `json:"endpoint" validate:"omitempty,url"`
	TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=0"`
}

type WhatsAppChannelConfig struct {
	Enabled *bool  `json:"enabled"`
	APIKey  string `json:"api_key"`
	Sender  string `json:"sender"`
	// Provider is "http" or "twilio".
	Provider       string `json:"provider" validate:"omitempty,oneof=http twilio"`
	Endpoint       string `json:"endpoint" validate:"omitempty,url"`
	AccountSID     string `json:"account_sid"`
	TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=0"`
}

type TelegramChannelConfig struct {
	Enabled        *bool  `json:"enabled"`
	BotToken       string `json:"bot_token"`
	BaseURL        string `json:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=0"`
}

func (c *ChannelsConfig) SetDefaults() {
	if c.WhatsApp.Provider == "" {
		c.WhatsApp.Provider = "http"
	}
}

func (c ChannelsConfig) Validate() error {
	if c.WhatsApp.Provider == "twilio" && c.WhatsApp.AccountSID == "" {
		return fmt.Errorf("channels.whatsapp.account_sid is required for the twilio provider")
	}
	return nil
}

// System returns the system-level settings per channel.
func (c ChannelsConfig) System() map[model.Channel]model.ChannelSettings {
	return map[model.Channel]model.ChannelSettings{
		model.ChannelEmail: {
			Channel:     model.ChannelEmail,
			Enabled:     c.Email.Enabled,
			ServiceID:   c.Email.ServiceID,
			TemplateID:  c.Email.TemplateID,
			PublicKey:   c.Email.PublicKey,
			SenderEmail: c.Email.SenderEmail,
			SenderName:  c.Email.SenderName,
		},
		model.ChannelWhatsApp: {
			Channel: model.ChannelWhatsApp,
			Enabled: c.WhatsApp.Enabled,
			APIKey:  c.WhatsApp.APIKey,
			Sender:  c.WhatsApp.Sender,
		},
		model.ChannelTelegram: {
			Channel:  model.ChannelTelegram,
			Enabled:  c.Telegram.Enabled,
			BotToken: c.Telegram.BotToken,
		},
	}
}

func (c ChannelsConfig) EmailJS() emailjs.Config {
	return emailjs.Config{Endpoint: c.Email.Endpoint, TimeoutSeconds: c.Email.TimeoutSeconds}
}

func (c ChannelsConfig) WhatsAppGateway() whatsapp.Config {
	return whatsapp.Config{
		Provider:       c.WhatsApp.Provider,
		Endpoint:       c.WhatsApp.Endpoint,
		TimeoutSeconds: c.WhatsApp.TimeoutSeconds,
		AccountSID:     c.WhatsApp.AccountSID,
	}
}

func (c ChannelsConfig) TelegramBot() telegram.Config {
	return telegram.Config{BaseURL: c.Telegram.BaseURL, TimeoutSeconds: c.Telegram.TimeoutSeconds}
}
