package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

// DefaultEndpoint is the Fonnte send endpoint.
const DefaultEndpoint = "https://api.fonnte.com/send"

// HTTPGateway posts form-encoded messages with the api key as Authorization header.
type HTTPGateway struct {
	endpoint string
	http     *http.Client
}

func NewHTTPGateway(cfg Config) *HTTPGateway {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	timeout := 15 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &HTTPGateway{endpoint: cfg.Endpoint, http: &http.Client{Timeout: timeout}}
}

type gatewayResponse struct {
	Status bool   `json:"status"`
	Reason string `json:"reason"`
}

func (g *HTTPGateway) Deliver(ctx context.Context, apiKey, sender, to, text string) error {
	form := url.Values{}
	form.Set("target", to)
	form.Set("message", text)
	form.Set("sender", sender)
	form.Set("countryCode", "62")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", apiKey)
	resp, err := g.http.Do(req)
	if err != nil {
		return &channel.ProviderError{Channel: model.ChannelWhatsApp, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return &channel.ProviderError{Channel: model.ChannelWhatsApp, StatusCode: resp.StatusCode, Body: string(body)}
	}
	// Some gateways answer 200 with {"status": false}.
	var out gatewayResponse
	if err := json.Unmarshal(body, &out); err == nil && !out.Status && out.Reason != "" {
		return &channel.ProviderError{
			Channel: model.ChannelWhatsApp, StatusCode: resp.StatusCode, Body: string(body),
			Err: fmt.Errorf("%s", out.Reason),
		}
	}
	return nil
}
