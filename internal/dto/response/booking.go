package response

import (
	"time"

	"agro-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type PricingResponse struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Taxes    decimal.Decimal `json:"taxes"`
	Total    decimal.Decimal `json:"total"`
}

type BookingLineResponse struct {
	ActivityID   string              `json:"activity_id"`
	ActivityName string              `json:"activity_name"`
	Date         string              `json:"date"`
	Participants entity.Participants `json:"participants"`
	Pricing      PricingResponse     `json:"pricing"`
}

type BookingPaymentResponse struct {
	Status        entity.PaymentStatus `json:"status"`
	TransactionID *string              `json:"transaction_id,omitempty"`
	PaidAmount    *decimal.Decimal     `json:"paid_amount,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
}

type CancellationResponse struct {
	Reason      string    `json:"reason,omitempty"`
	CancelledBy string    `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type BookingResponse struct {
	ID               string                 `json:"id"`
	ConfirmationCode string                 `json:"confirmation_code"`
	UserID           string                 `json:"user_id"`
	FarmID           string                 `json:"farm_id"`
	Status           entity.BookingStatus   `json:"status"`
	Activities       []BookingLineResponse  `json:"activities"`
	Pricing          PricingResponse        `json:"pricing"`
	Currency         string                 `json:"currency"`
	ContactInfo      entity.ContactInfo     `json:"contact_info"`
	GroupDetails     entity.GroupDetails    `json:"group_details"`
	Payment          BookingPaymentResponse `json:"payment"`
	Cancellation     *CancellationResponse  `json:"cancellation,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type StatusChangeResponse struct {
	From   *entity.BookingStatus `json:"from,omitempty"`
	To     entity.BookingStatus  `json:"to"`
	Reason string                `json:"reason,omitempty"`
	At     time.Time             `json:"at"`
}

type BookingDetailResponse struct {
	BookingResponse
	History []StatusChangeResponse `json:"history"`
}

// Helper converters
func PricingToResponse(p entity.Pricing) PricingResponse {
	return PricingResponse{Subtotal: p.Subtotal, Taxes: p.Taxes, Total: p.Total}
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	lines := make([]BookingLineResponse, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = BookingLineResponse{
			ActivityID:   l.ActivityID.String(),
			ActivityName: l.ActivityName,
			Date:         entity.DateKey(l.Date),
			Participants: l.Participants,
			Pricing:      PricingToResponse(l.Pricing),
		}
	}

	payment := BookingPaymentResponse{
		Status:        b.Payment.Status,
		TransactionID: b.Payment.TransactionID,
		PaidAt:        b.Payment.PaidAt,
	}
	if b.Payment.PaidAmount.Valid {
		amount := b.Payment.PaidAmount.Decimal
		payment.PaidAmount = &amount
	}

	var cancellation *CancellationResponse
	if b.Cancellation != nil {
		cancellation = &CancellationResponse{
			Reason:      b.Cancellation.Reason,
			CancelledBy: b.Cancellation.CancelledBy.String(),
			CancelledAt: b.Cancellation.CancelledAt,
		}
	}

	return BookingResponse{
		ID:               b.ID.String(),
		ConfirmationCode: b.ConfirmationCode,
		UserID:           b.UserID.String(),
		FarmID:           b.FarmID.String(),
		Status:           b.Status,
		Activities:       lines,
		Pricing:          PricingToResponse(b.Pricing),
		Currency:         b.Currency,
		ContactInfo:      b.ContactInfo,
		GroupDetails:     b.GroupDetails,
		Payment:          payment,
		Cancellation:     cancellation,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func BookingToDetailResponse(b *entity.Booking, history []entity.StatusChange) BookingDetailResponse {
	changes := make([]StatusChangeResponse, len(history))
	for i, h := range history {
		changes[i] = StatusChangeResponse{
			From:   h.From,
			To:     h.To,
			Reason: h.Reason,
			At:     h.At,
		}
	}

	return BookingDetailResponse{
		BookingResponse: BookingToResponse(b),
		History:         changes,
	}
}
