package repository

import (
	"context"
	"errors"
	"fmt"

	"agro-booking/internal/data/entity"
	"agro-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ActivityRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Activity, error)
}

type activityRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewActivityRepository(db database.Querier, log *zap.Logger) ActivityRepository {
	return &activityRepository{
		db:  db,
		log: log.With(zap.String("repository", "activity")),
	}
}

func (r *activityRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Activity, error) {
	query := `
		SELECT id, farm_id, name, adult_price, child_price, senior_price, currency,
		       min_participants, max_participants, blackout_dates, is_active,
		       created_at, updated_at
		FROM activities
		WHERE id = $1 AND deleted_at IS NULL
	`

	var activity entity.Activity
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&activity.ID,
		&activity.FarmID,
		&activity.Name,
		&activity.AdultPrice,
		&activity.ChildPrice,
		&activity.SeniorPrice,
		&activity.Currency,
		&activity.MinParticipants,
		&activity.MaxParticipants,
		&activity.BlackoutDates,
		&activity.IsActive,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find activity by ID",
			zap.Error(err),
			zap.String("activity_id", id.String()),
		)
		return nil, fmt.Errorf("find activity by ID %s: %w", id.String(), err)
	}

	return &activity, nil
}
