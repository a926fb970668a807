package adaptor

import (
	"agro-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Booking  *BookingHandler
	Payment  *PaymentHandler
	Webhook  *WebhookHandler
	Activity *ActivityHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking:  NewBookingHandler(service.Booking, log),
		Payment:  NewPaymentHandler(service.Payment, log),
		Webhook:  NewWebhookHandler(service.Webhook, log),
		Activity: NewActivityHandler(service.Quote, log),
	}
}
