package model

import (
	"regexp"
	"strings"
)

// RecipientKind tags a classified recipient.
type RecipientKind int

const (
	Unclassified RecipientKind = iota
	EmailRecipient
	PhoneRecipient
	TelegramRecipient
)

func (k RecipientKind) String() string {
	switch k {
	case EmailRecipient:
		return "email"
	case PhoneRecipient:
		return "phone"
	case TelegramRecipient:
		return "telegram"
	default:
		return "unclassified"
	}
}

// Channel returns the channel able to deliver to this kind of recipient.
func (k RecipientKind) Channel() (Channel, bool) {
	switch k {
	case EmailRecipient:
		return ChannelEmail, true
	case PhoneRecipient:
		return ChannelWhatsApp, true
	case TelegramRecipient:
		return ChannelTelegram, true
	}
	return "", false
}

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern    = regexp.MustCompile(`^\d{8,15}$`)
	telegramPattern = regexp.MustCompile(`^@[a-zA-Z0-9_]{5,}$`)

	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Recipient is a recipient string classified once at ingestion.
type Recipient struct {
	Kind  RecipientKind
	Value string
	Raw   string
}

// Valid reports whether the recipient matched a known format.
func (r Recipient) Valid() bool { return r.Kind != Unclassified }

// ClassifyRecipient tags raw with the first format it matches. Phone numbers
// are normalised to bare digits before matching.
func ClassifyRecipient(raw string) Recipient {
	s := strings.TrimSpace(raw)
	switch {
	case IsEmail(s):
		return Recipient{Kind: EmailRecipient, Value: s, Raw: raw}
	case IsTelegramHandle(s):
		return Recipient{Kind: TelegramRecipient, Value: s, Raw: raw}
	}
	if p, ok := NormalizePhone(s); ok {
		return Recipient{Kind: PhoneRecipient, Value: p, Raw: raw}
	}
	return Recipient{Kind: Unclassified, Value: s, Raw: raw}
}

// IsEmail reports whether s is an email address.
func IsEmail(s string) bool { return emailPattern.MatchString(s) }

// IsTelegramHandle reports whether s is a telegram handle such as @fleet_ops.
func IsTelegramHandle(s string) bool { return telegramPattern.MatchString(s) }

// NormalizePhone strips separators and a leading '+' and reports whether the
// result is an 8 to 15 digit number.
func NormalizePhone(s string) (string, bool) {
	p := strings.TrimPrefix(phoneNoise.Replace(strings.TrimSpace(s)), "+")
	return p, phonePattern.MatchString(p)
}

// RecipientBuckets partitions recipients by kind. Unclassified entries are kept
// apart so callers can decide what to do with them.
type RecipientBuckets struct {
	Email        []Recipient
	Phone        []Recipient
	Telegram     []Recipient
	Unclassified []Recipient
}

// For returns the bucket delivered by ch.
func (b RecipientBuckets) For(ch Channel) []Recipient {
	switch ch {
	case ChannelEmail:
		return b.Email
	case ChannelWhatsApp:
		return b.Phone
	case ChannelTelegram:
		return b.Telegram
	}
	return nil
}

// ValidCount returns the number of classified recipients.
func (b RecipientBuckets) ValidCount() int {
	return len(b.Email) + len(b.Phone) + len(b.Telegram)
}

// Valid returns the classified recipients in bucket order using their
// normalised values.
func (b RecipientBuckets) Valid() []string {
	out := make([]string, 0, b.ValidCount())
	for _, bucket := range [][]Recipient{b.Email, b.Phone, b.Telegram} {
		for _, r := range bucket {
			out = append(out, r.Value)
		}
	}
	return out
}

// PartitionRecipients classifies each raw recipient into disjoint buckets,
// dropping duplicates of the same normalised value.
func PartitionRecipients(raw []string) RecipientBuckets {
	var b RecipientBuckets
	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		r := ClassifyRecipient(s)
		key := r.Kind.String() + ":" + strings.ToLower(r.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		switch r.Kind {
		case EmailRecipient:
			b.Email = append(b.Email, r)
		case PhoneRecipient:
			b.Phone = append(b.Phone, r)
		case TelegramRecipient:
			b.Telegram = append(b.Telegram, r)
		default:
			b.Unclassified = append(b.Unclassified, r)
		}
	}
	return b
}
