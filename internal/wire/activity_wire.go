package wire

import (
	"agro-booking/internal/adaptor"
	"agro-booking/internal/data/repository"
	"agro-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireActivity(
	r chi.Router,
	activityHandler *adaptor.ActivityHandler,
	repo *repository.Repository,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	// GET /api/activities/{id}/quote - Price and availability for a party
	r.Get("/api/activities/{id}/quote", activityHandler.GetQuote)
}
