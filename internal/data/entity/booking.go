package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no-show"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusNoShow, BookingStatusCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

type Participants struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Seniors  int `json:"seniors"`
}

func (p Participants) Total() int {
	return p.Adults + p.Children + p.Seniors
}

// Pricing is an immutable money snapshot.
type Pricing struct {
	Subtotal decimal.Decimal `db:"subtotal"`
	Taxes    decimal.Decimal `db:"taxes"`
	Total    decimal.Decimal `db:"total"`
}

type BookingLine struct {
	ID           uuid.UUID    `db:"id"`
	BookingID    uuid.UUID    `db:"booking_id"`
	Position     int          `db:"position"`
	ActivityID   uuid.UUID    `db:"activity_id"`
	ActivityName string       `db:"activity_name"`
	Date         time.Time    `db:"booking_date"`
	Participants Participants `db:"participants"`
	Pricing      Pricing
}

type ContactInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	SpecialNeeds  string `json:"special_needs,omitempty"`
	DietaryNeeds  string `json:"dietary_needs,omitempty"`
	EmergencyName string `json:"emergency_name,omitempty"`
	EmergencyTel  string `json:"emergency_phone,omitempty"`
}

type GroupDetails struct {
	GroupName    string `json:"group_name,omitempty"`
	GroupType    string `json:"group_type,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

type BookingPayment struct {
	Status        PaymentStatus       `db:"payment_status"`
	TransactionID *string             `db:"payment_transaction_id"`
	PaidAmount    decimal.NullDecimal `db:"paid_amount"`
	PaidAt        *time.Time          `db:"paid_at"`
}

type Cancellation struct {
	Reason      string    `db:"cancellation_reason"`
	CancelledBy uuid.UUID `db:"cancelled_by"`
	CancelledAt time.Time `db:"cancelled_at"`
}

type Booking struct {
	BaseNoDelete
	ConfirmationCode string        `db:"confirmation_code"`
	UserID           uuid.UUID     `db:"user_id"`
	FarmID           uuid.UUID     `db:"farm_id"`
	Lines            []BookingLine `db:"-"`
	ContactInfo      ContactInfo   `db:"contact_info"`
	GroupDetails     GroupDetails  `db:"group_details"`
	Pricing          Pricing
	Currency         string        `db:"currency"`
	Status           BookingStatus `db:"status"`
	Payment          BookingPayment
	Cancellation     *Cancellation
}

// StatusChange is one row of a booking's append-only status history.
type StatusChange struct {
	ID        uuid.UUID      `db:"id"`
	BookingID uuid.UUID      `db:"booking_id"`
	From      *BookingStatus `db:"from_status"`
	To        BookingStatus  `db:"to_status"`
	Reason    string         `db:"reason"`
	ActorID   *uuid.UUID     `db:"actor_id"`
	At        time.Time      `db:"created_at"`
}
