package model

import (
	"strings"
	"time"
)

// Document is an externally managed vehicle document (registration, permits,
// inspection certificates). Field names follow the upstream data source.
type Document struct {
	ID                string     `json:"id" yaml:"id"`
	PlatNomor         string     `json:"plat_nomor" yaml:"plat_nomor"`
	JenisDokumen      string     `json:"jenis_dokumen" yaml:"jenis_dokumen"`
	Status            string     `json:"status" yaml:"status"`
	TanggalKadaluarsa *time.Time `json:"tanggal_kadaluarsa,omitempty" yaml:"tanggal_kadaluarsa"`
}

// ExpiredOn reports whether the document is expired as of the given day:
// either reported as such or past its expiry date.
func (d Document) ExpiredOn(asOf time.Time) bool {
	if strings.EqualFold(strings.TrimSpace(d.Status), "expired") {
		return true
	}
	if d.TanggalKadaluarsa == nil {
		return false
	}
	exp := DateOnly(*d.TanggalKadaluarsa)
	return exp.Before(DateOnly(asOf))
}

// Vehicle is an externally managed fleet vehicle.
type Vehicle struct {
	ID               string     `json:"id" yaml:"id"`
	PlatNomor        string     `json:"plat_nomor" yaml:"plat_nomor"`
	ServisBerikutnya *time.Time `json:"servis_berikutnya,omitempty" yaml:"servis_berikutnya"`
}

// Contact is a person reachable on one or more channels.
type Contact struct {
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email,omitempty" yaml:"email"`
	WhatsApp string `json:"whatsapp,omitempty" yaml:"whatsapp"`
	Telegram string `json:"telegram,omitempty" yaml:"telegram"`
}
