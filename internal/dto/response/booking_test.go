package response

import (
	"encoding/json"
	"testing"
	"time"

	"agro-booking/internal/data/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingToDetailResponse(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	txID := "pi_1"
	pending := entity.BookingStatusPending
	b := &entity.Booking{
		BaseNoDelete:     entity.BaseNoDelete{ID: uuid.New(), CreatedAt: at, UpdatedAt: at},
		ConfirmationCode: "A1B2C3D4E5F6",
		Lines: []entity.BookingLine{{
			ActivityID:   uuid.New(),
			ActivityName: "Milking",
			Date:         time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
			Participants: entity.Participants{Adults: 2},
			Pricing:      entity.Pricing{Subtotal: decimal.RequireFromString("40"), Taxes: decimal.RequireFromString("4.80"), Total: decimal.RequireFromString("44.80")},
		}},
		Status: entity.BookingStatusConfirmed,
		Payment: entity.BookingPayment{
			Status:        entity.PaymentStatusCompleted,
			TransactionID: &txID,
			PaidAmount:    decimal.NewNullDecimal(decimal.RequireFromString("44.80")),
			PaidAt:        &at,
		},
	}
	history := []entity.StatusChange{
		{To: entity.BookingStatusPending, At: at},
		{From: &pending, To: entity.BookingStatusConfirmed, Reason: "Payment received", At: at},
	}

	resp := BookingToDetailResponse(b, history)

	assert.Equal(t, "2026-11-02", resp.Activities[0].Date)
	require.NotNil(t, resp.Payment.PaidAmount)
	assert.Equal(t, "44.8", resp.Payment.PaidAmount.String())
	assert.Nil(t, resp.Cancellation)
	require.Len(t, resp.History, 2)
	assert.Nil(t, resp.History[0].From)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"confirmation_code":"A1B2C3D4E5F6"`)
	assert.Contains(t, string(raw), `"history":[`)
	assert.NotContains(t, string(raw), `"cancellation"`)
}

func TestNewPaginatedResponse(t *testing.T) {
	page := NewPaginatedResponse([]int{1, 2}, 2, 2, 5)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Equal(t, int64(5), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.Page)
}
