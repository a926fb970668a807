package wire

import (
	"agro-booking/internal/adaptor"
	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/pkg/middleware"
	"agro-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))

		// POST /api/bookings - Create new booking
		r.With(middleware.RequireCapability(entity.CapBook, log)).Post("/api/bookings", bookingHandler.CreateBooking)

		// GET /api/user/bookings - View booking history (user's own bookings)
		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)

		// GET /api/bookings/confirmation/{code} - Lookup by confirmation code
		r.Get("/api/bookings/confirmation/{code}", bookingHandler.GetBookingByCode)

		// GET /api/bookings/{id} - Booking details with status history
		r.Get("/api/bookings/{id}", bookingHandler.GetBooking)

		// PUT /api/bookings/{id} - Modify a pending booking (owner)
		r.Put("/api/bookings/{id}", bookingHandler.ModifyBooking)

		// PUT /api/bookings/{id}/cancel - Cancel booking (owner)
		r.Put("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)
	})

	// ==================== FARM OWNER ROUTES ====================
	r.Group(func(r chi.Router) {
		// Require both authentication AND farm management capability
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.RequireCapability(entity.CapManageFarmBooking, log))

		// PUT /api/bookings/{id}/status - completed, no-show or cancelled
		r.Put("/api/bookings/{id}/status", bookingHandler.UpdateStatus)
	})
}
