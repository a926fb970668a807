package usecase

import (
	"context"
	"fmt"

	"agro-booking/internal/data/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatsService owns farm cumulative statistics.
type StatsService interface {
	// Apply records one paid booking. It joins the caller's transaction when ctx carries one.
	Apply(ctx context.Context, farmID uuid.UUID, amount decimal.Decimal) error
}

type statsService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewStatsService(repo *repository.Repository, log *zap.Logger) StatsService {
	return &statsService{
		repo: repo,
		log:  log.With(zap.String("service", "stats")),
	}
}

func (s *statsService) Apply(ctx context.Context, farmID uuid.UUID, amount decimal.Decimal) error {
	if err := s.repo.FarmStats.Increment(ctx, farmID, 1, amount); err != nil {
		return fmt.Errorf("apply farm statistics: %w", err)
	}

	s.log.Debug("Farm statistics updated",
		zap.String("farm_id", farmID.String()),
		zap.String("amount", amount.String()),
	)
	return nil
}
