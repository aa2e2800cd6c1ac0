package model

// Channel is a delivery medium with its own recipient-format rules.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// AllChannels lists the supported channels in dispatch order.
var AllChannels = []Channel{ChannelEmail, ChannelWhatsApp, ChannelTelegram}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelTelegram:
		return true
	}
	return false
}

func (c Channel) String() string { return string(c) }

// ChannelSettings holds the user-provided configuration of one channel.
// Empty fields fall back to the system defaults.
type ChannelSettings struct {
	Channel Channel `json:"channel" yaml:"channel"`
	// Enabled is nil when the user never toggled the channel.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled"`

	// email
	ServiceID   string `json:"service_id,omitempty" yaml:"service_id"`
	TemplateID  string `json:"template_id,omitempty" yaml:"template_id"`
	PublicKey   string `json:"public_key,omitempty" yaml:"public_key"`
	SenderEmail string `json:"sender_email,omitempty" yaml:"sender_email"`
	SenderName  string `json:"sender_name,omitempty" yaml:"sender_name"`

	// whatsapp
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`
	Sender string `json:"sender,omitempty" yaml:"sender"`

	// telegram
	BotToken string `json:"bot_token,omitempty" yaml:"bot_token"`
}
