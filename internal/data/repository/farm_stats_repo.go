package repository

import (
	"context"
	"fmt"

	"agro-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FarmStatsRepository interface {
	// Increment adds to the farm counters in a single statement.
	Increment(ctx context.Context, farmID uuid.UUID, bookings int64, revenue decimal.Decimal) error
}

type farmStatsRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewFarmStatsRepository(db database.Querier, log *zap.Logger) FarmStatsRepository {
	return &farmStatsRepository{
		db:  db,
		log: log.With(zap.String("repository", "farm_statistics")),
	}
}

func (r *farmStatsRepository) Increment(ctx context.Context, farmID uuid.UUID, bookings int64, revenue decimal.Decimal) error {
	query := `
		INSERT INTO farm_statistics (farm_id, booking_count, revenue, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (farm_id) DO UPDATE
		SET booking_count = farm_statistics.booking_count + EXCLUDED.booking_count,
		    revenue       = farm_statistics.revenue + EXCLUDED.revenue,
		    updated_at    = NOW()
	`

	if _, err := database.Conn(ctx, r.db).Exec(ctx, query, farmID, bookings, revenue); err != nil {
		r.log.Error("Failed to increment farm statistics",
			zap.Error(err),
			zap.String("farm_id", farmID.String()),
			zap.String("revenue", revenue.String()),
		)
		return fmt.Errorf("increment farm %s statistics: %w", farmID.String(), err)
	}

	return nil
}
