package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"

	TemplateBookingConfirmation = "booking_confirmation"
	TemplateBookingStatusUpdate = "booking_status_update"
	TemplateBookingCancelled    = "booking_cancelled"
)

// Notification is the message handed to the notification service.
type Notification struct {
	Event            string        `json:"event"`
	Template         string        `json:"template"`
	Recipient        string        `json:"recipient"`
	BookingID        uuid.UUID     `json:"booking_id"`
	ConfirmationCode string        `json:"confirmation_code"`
	Status           BookingStatus `json:"status"`
	Reason           string        `json:"reason,omitempty"`
	OccurredAt       time.Time     `json:"occurred_at"`
}
