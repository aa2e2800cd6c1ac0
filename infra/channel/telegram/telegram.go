// Package telegram sends reminders through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

// DefaultBaseURL is the public Bot API host.
const DefaultBaseURL = "https://api.telegram.org"

// Config configures the HTTP client.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

var _ channel.Sender = (*Sender)(nil)

// Sender implements channel.Sender for Telegram.
type Sender struct {
	baseURL string
	http    *http.Client
}

func New(cfg Config) *Sender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	timeout := 10 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Sender{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: &http.Client{Timeout: timeout}}
}

type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *Sender) Channel() model.Channel { return model.ChannelTelegram }

// Send posts the plain-text body with a bold subject line.
func (s *Sender) Send(ctx context.Context, settings model.ChannelSettings, msg channel.Message) error {
	if err := channel.Require(model.ChannelTelegram, settings); err != nil {
		return err
	}
	text := html.EscapeString(msg.Text)
	if msg.Subject != "" {
		text = "<b>" + html.EscapeString(msg.Subject) + "</b>\n\n" + text
	}
	buf, err := json.Marshal(sendMessage{ChatID: msg.Recipient, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, settings.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return &channel.ProviderError{Channel: model.ChannelTelegram, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out apiResponse
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode >= 300 || !out.OK {
		pe := &channel.ProviderError{Channel: model.ChannelTelegram, StatusCode: resp.StatusCode, Body: string(body)}
		if out.Description != "" {
			pe.Err = fmt.Errorf("%s", out.Description)
		}
		return pe
	}
	return nil
}
