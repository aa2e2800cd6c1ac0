package whatsapp

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/model"
)

// messageCreator is the subset of the Twilio REST client used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// newTwilioClient is replaced in tests.
var newTwilioClient = func(accountSID, authToken string) messageCreator {
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	}).Api
}

// TwilioGateway sends WhatsApp messages through Twilio.
type TwilioGateway struct {
	accountSID string
}

func NewTwilioGateway(cfg Config) (*TwilioGateway, error) {
	if cfg.AccountSID == "" {
		return nil, channel.Incomplete(model.ChannelWhatsApp, "account_sid")
	}
	return &TwilioGateway{accountSID: cfg.AccountSID}, nil
}

func (g *TwilioGateway) Deliver(_ context.Context, apiKey, sender, to, text string) error {
	from, ok := model.NormalizePhone(sender)
	if !ok {
		return channel.Incomplete(model.ChannelWhatsApp, "sender")
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom("whatsapp:+" + from)
	params.SetBody(text)
	resp, err := newTwilioClient(g.accountSID, apiKey).CreateMessage(params)
	if err != nil {
		return &channel.ProviderError{Channel: model.ChannelWhatsApp, Err: err}
	}
	if resp != nil && resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return &channel.ProviderError{Channel: model.ChannelWhatsApp, Err: fmt.Errorf("%s", *resp.ErrorMessage)}
	}
	return nil
}
