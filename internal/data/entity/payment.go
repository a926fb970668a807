package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusOnHold     PayoutStatus = "on_hold"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
)

// Payment is the durable record of a provider-confirmed transaction.
// ProviderTransactionID is unique and serves as the idempotency key.
type Payment struct {
	BaseNoDelete
	BookingID             uuid.UUID       `db:"booking_id"`
	FarmID                uuid.UUID       `db:"farm_id"`
	UserID                uuid.UUID       `db:"user_id"`
	Provider              string          `db:"provider"`
	ProviderTransactionID string          `db:"provider_transaction_id"`
	Amount                decimal.Decimal `db:"amount"`
	Currency              string          `db:"currency"`
	Status                PaymentStatus   `db:"status"`
	CommissionRate        decimal.Decimal `db:"commission_rate"`
	CommissionAmount      decimal.Decimal `db:"commission_amount"`
	PayoutAmount          decimal.Decimal `db:"payout_amount"`
	PayoutStatus          PayoutStatus    `db:"payout_status"`
	PayoutScheduledAt     time.Time       `db:"payout_scheduled_at"`
	AppliedAt             *time.Time      `db:"applied_at"`
}

func (p *Payment) Applied() bool {
	return p.AppliedAt != nil
}
