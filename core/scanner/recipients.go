package scanner

import (
	"strings"

	"github.com/kilianp07/fleetremind/core/model"
)

// Defaults are the fallback recipients used when no contact qualifies for a channel.
type Defaults struct {
	Email    string
	WhatsApp string
}

// ResolveRecipients collects, for each enabled channel, the contacts whose
// address fits the channel format. Email and WhatsApp fall back to the
// defaults; Telegram has no fallback. The union is de-duplicated in order.
func ResolveRecipients(contacts []model.Contact, enabled []model.Channel, def Defaults) []string {
	var out []string
	seen := map[string]bool{}
	add := func(v string) {
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, v)
	}
	for _, ch := range enabled {
		var found []string
		for _, c := range contacts {
			switch ch {
			case model.ChannelEmail:
				if e := strings.TrimSpace(c.Email); model.IsEmail(e) {
					found = append(found, e)
				}
			case model.ChannelWhatsApp:
				if p, ok := model.NormalizePhone(c.WhatsApp); ok {
					found = append(found, p)
				}
			case model.ChannelTelegram:
				if h := strings.TrimSpace(c.Telegram); model.IsTelegramHandle(h) {
					found = append(found, h)
				}
			}
		}
		if len(found) == 0 {
			switch ch {
			case model.ChannelEmail:
				if model.IsEmail(def.Email) {
					found = append(found, def.Email)
				}
			case model.ChannelWhatsApp:
				if p, ok := model.NormalizePhone(def.WhatsApp); ok {
					found = append(found, p)
				}
			}
		}
		for _, v := range found {
			add(v)
		}
	}
	return out
}
