package wire

import (
	"agro-booking/internal/adaptor"
	"agro-booking/internal/data/repository"
	"agro-booking/pkg/middleware"
	"agro-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	webhookHandler *adaptor.WebhookHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))

		// POST /api/payments/intent - Start provider payment for a pending booking
		r.Post("/api/payments/intent", paymentHandler.CreateIntent)

		// GET /api/user/payments - Payment history of the caller
		r.Get("/api/user/payments", paymentHandler.GetUserPayments)
	})

	// ==================== PROVIDER CALLBACKS ====================
	// POST /api/payments/webhook - Authenticated by signature, not by session
	r.Post("/api/payments/webhook", webhookHandler.HandlePayment)
}
