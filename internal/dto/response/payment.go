package response

import (
	"time"

	"agro-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type PaymentIntentResponse struct {
	BookingID    string          `json:"booking_id"`
	Provider     string          `json:"provider"`
	IntentID     string          `json:"intent_id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	AmountMinor  int64           `json:"amount_minor"`
	Currency     string          `json:"currency"`
}

type PaymentResponse struct {
	ID            string               `json:"id"`
	BookingID     string               `json:"booking_id"`
	Provider      string               `json:"provider"`
	TransactionID string               `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency"`
	Status        entity.PaymentStatus `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

func PaymentToResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		BookingID:     p.BookingID.String(),
		Provider:      p.Provider,
		TransactionID: p.ProviderTransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
	}
}
