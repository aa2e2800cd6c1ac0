//go:build !nowhatsapp

package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

var settings = model.ChannelSettings{APIKey: "KEY", Sender: "6281100000000"}

func newHTTPSender() (*Sender, *httpmock.MockTransport) {
	gw := NewHTTPGateway(Config{})
	mock := httpmock.NewMockTransport()
	gw.http.Transport = mock
	return NewWithGateway(gw), mock
}

func TestHTTPGateway_Form(t *testing.T) {
	s, mock := newHTTPSender()
	mock.RegisterResponder(http.MethodPost, DefaultEndpoint, func(r *http.Request) (*http.Response, error) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "KEY", r.Header.Get("Authorization"))
		assert.Equal(t, "6281234567890", r.PostForm.Get("target"))
		assert.Equal(t, "6281100000000", r.PostForm.Get("sender"))
		assert.Equal(t, "*Reminder*\n\nService due", r.PostForm.Get("message"))
		return httpmock.NewStringResponse(200, `{"status":true}`), nil
	})
	err := s.Send(context.Background(), settings, channel.Message{
		Recipient: "+62 812-3456-7890", Subject: "Reminder", Text: "Service due",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestHTTPGateway_StatusFalse(t *testing.T) {
	s, mock := newHTTPSender()
	mock.RegisterResponder(http.MethodPost, DefaultEndpoint,
		httpmock.NewStringResponder(200, `{"status":false,"reason":"invalid token"}`))
	err := s.Send(context.Background(), settings, channel.Message{Recipient: "6281234567890"})
	require.ErrorIs(t, err, channel.ErrProviderError)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestHTTPGateway_HTTPError(t *testing.T) {
	s, mock := newHTTPSender()
	mock.RegisterResponder(http.MethodPost, DefaultEndpoint, httpmock.NewStringResponder(502, "bad gateway"))
	err := s.Send(context.Background(), settings, channel.Message{Recipient: "6281234567890"})
	var pe *channel.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 502, pe.StatusCode)
}

func TestSend_Validation(t *testing.T) {
	s, mock := newHTTPSender()
	err := s.Send(context.Background(), model.ChannelSettings{APIKey: "KEY"}, channel.Message{Recipient: "6281234567890"})
	assert.ErrorIs(t, err, channel.ErrConfigurationIncomplete)
	err = s.Send(context.Background(), settings, channel.Message{Recipient: "ops@fleet.id"})
	assert.ErrorIs(t, err, channel.ErrInvalidRecipient)
	assert.Zero(t, mock.GetTotalCallCount())
}

type fakeTwilio struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	return &twilioApi.ApiV2010Message{}, f.err
}

func TestTwilioGateway(t *testing.T) {
	fake := &fakeTwilio{}
	var sid, token string
	orig := newTwilioClient
	newTwilioClient = func(a, b string) messageCreator { sid, token = a, b; return fake }
	defer func() { newTwilioClient = orig }()

	s, err := New(Config{Provider: "twilio", AccountSID: "AC123"})
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), settings, channel.Message{Recipient: "6281234567890", Text: "hi"}))
	assert.Equal(t, "AC123", sid)
	assert.Equal(t, "KEY", token)
	require.NotNil(t, fake.params.To)
	assert.Equal(t, "whatsapp:+6281234567890", *fake.params.To)
	assert.Equal(t, "whatsapp:+6281100000000", *fake.params.From)
	assert.Equal(t, "hi", *fake.params.Body)

	fake.err = errors.New("20003 authenticate")
	err = s.Send(context.Background(), settings, channel.Message{Recipient: "6281234567890"})
	assert.ErrorIs(t, err, channel.ErrProviderError)
}

func TestNew_Providers(t *testing.T) {
	_, err := New(Config{Provider: "twilio"})
	assert.ErrorIs(t, err, channel.ErrConfigurationIncomplete)
	_, err = New(Config{Provider: "pigeon"})
	assert.Error(t, err)
	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelWhatsApp, s.Channel())
}
