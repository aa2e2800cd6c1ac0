package channel

import (
	"context"
	"fmt"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// Settings resolves effective channel settings: user-provided values take
// precedence over system defaults field by field.
type Settings struct {
	user   store.SettingsStore
	system map[model.Channel]model.ChannelSettings
}

// NewSettings builds a resolver. user may be nil.
func NewSettings(user store.SettingsStore, system map[model.Channel]model.ChannelSettings) *Settings {
	if system == nil {
		system = map[model.Channel]model.ChannelSettings{}
	}
	return &Settings{user: user, system: system}
}

// Effective returns the merged settings for ch.
func (s *Settings) Effective(ctx context.Context, ch model.Channel) (model.ChannelSettings, error) {
	base := s.system[ch]
	base.Channel = ch
	if s.user == nil {
		return base, nil
	}
	u, ok, err := s.user.GetChannelSettings(ctx, ch)
	if err != nil {
		return base, fmt.Errorf("%s settings: %w", ch, err)
	}
	if !ok {
		return base, nil
	}
	return Merge(u, base), nil
}

// Enabled returns the channels whose effective settings are enabled, in
// dispatch order.
func (s *Settings) Enabled(ctx context.Context) ([]model.Channel, error) {
	var out []model.Channel
	for _, ch := range model.AllChannels {
		st, err := s.Effective(ctx, ch)
		if err != nil {
			return nil, err
		}
		if st.Enabled != nil && *st.Enabled {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Merge overlays the non-empty fields of user on system.
func Merge(user, system model.ChannelSettings) model.ChannelSettings {
	out := system
	if user.Enabled != nil {
		v := *user.Enabled
		out.Enabled = &v
	}
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.ServiceID, user.ServiceID)
	pick(&out.TemplateID, user.TemplateID)
	pick(&out.PublicKey, user.PublicKey)
	pick(&out.SenderEmail, user.SenderEmail)
	pick(&out.SenderName, user.SenderName)
	pick(&out.APIKey, user.APIKey)
	pick(&out.Sender, user.Sender)
	pick(&out.BotToken, user.BotToken)
	return out
}
