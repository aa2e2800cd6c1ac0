package model

import "time"

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeletedReminderTitle is stored when the referenced reminder no longer exists.
const DeletedReminderTitle = "(deleted reminder)"

// DeliveryLog is the immutable audit record of one send attempt. ReminderID is
// a weak reference and ReminderTitle a snapshot taken at write time.
type DeliveryLog struct {
	ID            string         `json:"id"`
	ReminderID    string         `json:"reminder_id"`
	ReminderTitle string         `json:"reminder_title"`
	Recipient     string         `json:"recipient"`
	Channel       Channel        `json:"channel"`
	Status        DeliveryStatus `json:"status"`
	Subject       string         `json:"subject,omitempty"`
	Message       string         `json:"message"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	SentAt        time.Time      `json:"sent_at"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	Attempts      int            `json:"attempts"`
}
