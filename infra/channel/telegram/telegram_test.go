package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

const sendURL = "https://api.telegram.org/botTOKEN/sendMessage"

func newMocked() (*Sender, *httpmock.MockTransport) {
	s := New(Config{})
	mock := httpmock.NewMockTransport()
	s.http.Transport = mock
	return s, mock
}

func TestSend(t *testing.T) {
	s, mock := newMocked()
	var got sendMessage
	mock.RegisterResponder(http.MethodPost, sendURL, func(r *http.Request) (*http.Response, error) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		return httpmock.NewStringResponse(200, `{"ok":true,"result":{}}`), nil
	})
	err := s.Send(context.Background(), model.ChannelSettings{BotToken: "TOKEN"}, channel.Message{
		Recipient: "@fleetops", Subject: "Reminder: STNK", Text: "Expires in <3 days",
	})
	require.NoError(t, err)
	assert.Equal(t, "@fleetops", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Equal(t, "<b>Reminder: STNK</b>\n\nExpires in &lt;3 days", got.Text)
}

func TestSend_APIError(t *testing.T) {
	s, mock := newMocked()
	mock.RegisterResponder(http.MethodPost, sendURL,
		httpmock.NewStringResponder(400, `{"ok":false,"description":"Bad Request: chat not found"}`))
	err := s.Send(context.Background(), model.ChannelSettings{BotToken: "TOKEN"}, channel.Message{Recipient: "@nobody1"})
	require.ErrorIs(t, err, channel.ErrProviderError)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSend_MissingToken(t *testing.T) {
	s, mock := newMocked()
	err := s.Send(context.Background(), model.ChannelSettings{}, channel.Message{Recipient: "@fleetops"})
	assert.ErrorIs(t, err, channel.ErrConfigurationIncomplete)
	assert.Zero(t, mock.GetTotalCallCount())
}
