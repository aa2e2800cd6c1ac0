package channel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store/memory"
)

func boolPtr(b bool) *bool { return &b }

func TestRequire(t *testing.T) {
	err := Require(model.ChannelEmail, model.ChannelSettings{ServiceID: "s", PublicKey: "p"})
	require.ErrorIs(t, err, ErrConfigurationIncomplete)
	assert.Contains(t, err.Error(), "template_id, sender_email")

	assert.NoError(t, Require(model.ChannelTelegram, model.ChannelSettings{BotToken: "t"}))
	assert.ErrorIs(t, Require(model.ChannelWhatsApp, model.ChannelSettings{APIKey: "k"}), ErrConfigurationIncomplete)
}

func TestProviderError(t *testing.T) {
	pe := &ProviderError{Channel: model.ChannelTelegram, StatusCode: 400, Body: `{"ok":false}`}
	wrapped := fmt.Errorf("send: %w", pe)
	assert.ErrorIs(t, wrapped, ErrProviderError)
	var target *ProviderError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, 400, target.StatusCode)
	assert.Equal(t, `telegram provider error: status 400: {"ok":false}`, pe.Error())
}

func TestSettings_Precedence(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	system := map[model.Channel]model.ChannelSettings{
		model.ChannelEmail:    {Enabled: boolPtr(true), ServiceID: "sys-svc", TemplateID: "sys-tpl", PublicKey: "sys-key", SenderEmail: "noreply@fleet.id"},
		model.ChannelTelegram: {Enabled: boolPtr(true), BotToken: "sys-token"},
	}
	s := NewSettings(mem, system)

	eff, err := s.Effective(ctx, model.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "sys-svc", eff.ServiceID)
	assert.Equal(t, model.ChannelEmail, eff.Channel)

	require.NoError(t, mem.SaveChannelSettings(ctx, model.ChannelSettings{Channel: model.ChannelEmail, ServiceID: "user-svc"}))
	require.NoError(t, mem.SaveChannelSettings(ctx, model.ChannelSettings{Channel: model.ChannelTelegram, Enabled: boolPtr(false)}))
	require.NoError(t, mem.SaveChannelSettings(ctx, model.ChannelSettings{Channel: model.ChannelWhatsApp, Enabled: boolPtr(true), APIKey: "k"}))

	eff, err = s.Effective(ctx, model.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "user-svc", eff.ServiceID)
	assert.Equal(t, "sys-tpl", eff.TemplateID)

	enabled, err := s.Enabled(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Channel{model.ChannelEmail, model.ChannelWhatsApp}, enabled)

	wa, err := s.Effective(ctx, model.ChannelWhatsApp)
	require.NoError(t, err)
	assert.ErrorIs(t, Require(model.ChannelWhatsApp, wa), ErrConfigurationIncomplete)
}
