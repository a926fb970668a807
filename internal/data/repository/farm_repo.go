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

type FarmRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Farm, error)
}

type farmRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewFarmRepository(db database.Querier, log *zap.Logger) FarmRepository {
	return &farmRepository{
		db:  db,
		log: log.With(zap.String("repository", "farm")),
	}
}

func (r *farmRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Farm, error) {
	query := `
		SELECT id, owner_id, name, status, is_active, created_at, updated_at
		FROM farms
		WHERE id = $1 AND deleted_at IS NULL
	`

	var farm entity.Farm
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&farm.ID,
		&farm.OwnerID,
		&farm.Name,
		&farm.Status,
		&farm.IsActive,
		&farm.CreatedAt,
		&farm.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find farm by ID",
			zap.Error(err),
			zap.String("farm_id", id.String()),
		)
		return nil, fmt.Errorf("find farm by ID %s: %w", id.String(), err)
	}

	return &farm, nil
}
