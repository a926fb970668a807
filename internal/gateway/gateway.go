// Package gateway adapts the external payment provider to the booking engine.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

const EventPaymentSucceeded = "payment_intent.succeeded"

var (
	// ErrInvalidSignature means the callback could not be authenticated. Never retried.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent means the callback was authentic but its content is unusable.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// PaymentEvent is a verified provider callback.
type PaymentEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	BookingID     string `json:"booking_id"`
	UserID        string `json:"user_id"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
}

func (e *PaymentEvent) Succeeded() bool {
	return e.Type == EventPaymentSucceeded
}

// Amount converts the minor-unit amount back to a decimal.
func (e *PaymentEvent) Amount() decimal.Decimal {
	return FromMinorUnits(e.AmountMinor)
}

type Intent struct {
	ProviderID   string
	ClientSecret string
}

type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	// ParseEvent authenticates payload against the signature header and decodes it.
	ParseEvent(payload []byte, signatureHeader string) (*PaymentEvent, error)
}

// ToMinorUnits converts a two-decimal currency amount to provider minor units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
