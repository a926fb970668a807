package repository

import (
	"agro-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Tx        database.Transactor
	Session   SessionRepository
	Farm      FarmRepository
	Activity  ActivityRepository
	Booking   BookingRepository
	Payment   PaymentRepository
	FarmStats FarmStatsRepository
}

func NewRepository(db *database.DB, log *zap.Logger) *Repository {
	return &Repository{
		Tx:        db,
		Session:   NewSessionRepository(db, log),
		Farm:      NewFarmRepository(db, log),
		Activity:  NewActivityRepository(db, log),
		Booking:   NewBookingRepository(db, log),
		Payment:   NewPaymentRepository(db, log),
		FarmStats: NewFarmStatsRepository(db, log),
	}
}
