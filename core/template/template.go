// Package template renders reminder subjects and bodies.
package template

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/schedule"
)

const (
	DefaultSubject  = "Reminder: {title} ({vehicle})"
	DefaultBody     = "<p>Hello,</p><p><b>{title}</b> for vehicle <b>{vehicle}</b> is due on {date} ({days} days left, urgency: {urgency}).</p><p>{company}</p>"
	DefaultAutoBody = "<p><b>{document}</b> for vehicle <b>{vehicle}</b> has expired.</p><p>Please renew it as soon as possible.</p><p>{company} · {today}</p>"
)

// Urgency labels derived from the remaining days.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyNormal = "normal"
)

var (
	placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)
	hasMarkup   = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
)

// Config tunes rendering.
type Config struct {
	Company string `json:"company"`
	// Locale selects the long date format: "id" (default) or "en".
	Locale         string `json:"locale"`
	SubjectPattern string `json:"subject"`
	// Location is used for {date} and {today}. Nil means UTC.
	Location *time.Location `json:"-"`
}

// Data carries values resolved outside the reminder itself.
type Data struct {
	Vehicle  string
	Document string
}

// Rendered is the output of Render.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
	Days    int
	Urgency string
}

// Renderer substitutes placeholders in reminder templates. It never fails:
// unknown placeholders pass through and missing values render empty.
type Renderer struct {
	cfg Config
}

// NewRenderer builds a Renderer from cfg.
func NewRenderer(cfg Config) *Renderer {
	if cfg.SubjectPattern == "" {
		cfg.SubjectPattern = DefaultSubject
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Renderer{cfg: cfg}
}

// Urgency maps remaining days to a label. Overdue reminders have negative
// days and are always high.
func Urgency(days int) string {
	switch {
	case days <= 3:
		return UrgencyHigh
	case days <= 7:
		return UrgencyMedium
	default:
		return UrgencyNormal
	}
}

// Render produces the subject plus rich and plain bodies of r as of asOf.
func (r *Renderer) Render(rem model.ReminderConfig, asOf time.Time, data Data) Rendered {
	remaining := schedule.DaysUntil(rem.TriggerDate, asOf.In(r.cfg.Location))
	days := remaining
	if days < 0 {
		days = -days
	}
	vehicle := data.Vehicle
	if vehicle == "" {
		vehicle = rem.VehicleRef
	}
	values := map[string]string{
		"vehicle":  vehicle,
		"days":     strconv.Itoa(days),
		"title":    rem.Title,
		"document": data.Document,
		"company":  r.cfg.Company,
		"urgency":  Urgency(remaining),
		"today":    r.FormatDate(asOf.In(r.cfg.Location)),
	}
	if !rem.TriggerDate.IsZero() {
		values["date"] = r.FormatDate(rem.TriggerDate)
	} else {
		values["date"] = ""
	}

	body := rem.MessageTemplate
	if strings.TrimSpace(body) == "" {
		body = DefaultBody
		if rem.Type == model.ReminderDocument && rem.DocumentRef != "" {
			body = DefaultAutoBody
		}
	}
	if !hasMarkup.MatchString(body) {
		body = strings.ReplaceAll(body, "\n", "<br>\n")
	}
	rich := substitute(body, values, html.EscapeString)
	return Rendered{
		Subject: substitute(r.cfg.SubjectPattern, values, nil),
		HTML:    rich,
		Text:    PlainText(rich),
		Days:    days,
		Urgency: values["urgency"],
	}
}

func substitute(s string, values map[string]string, escape func(string) string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		v, ok := values[m[1:len(m)-1]]
		if !ok {
			return m
		}
		if escape != nil {
			return escape(v)
		}
		return v
	})
}

var monthsID = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders t in the configured long format, e.g. "30 Juni 2025".
func (r *Renderer) FormatDate(t time.Time) string {
	if r.cfg.Locale == "en" {
		return t.Format("2 January 2006")
	}
	return fmt.Sprintf("%d %s %d", t.Day(), monthsID[t.Month()-1], t.Year())
}
