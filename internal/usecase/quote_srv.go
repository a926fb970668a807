package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/internal/dto/request"
	"agro-booking/internal/dto/response"
	"agro-booking/pkg/fxrate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteService prices an activity without creating anything.
type QuoteService interface {
	Quote(ctx context.Context, activityID string, req *request.QuoteRequest) (*response.QuoteResponse, error)
}

type quoteService struct {
	repo    *repository.Repository
	pricing PricingCalculator
	rates   RateSource
	log     *zap.Logger
}

func NewQuoteService(repo *repository.Repository, pricing PricingCalculator, rates RateSource, log *zap.Logger) QuoteService {
	return &quoteService{
		repo:    repo,
		pricing: pricing,
		rates:   rates,
		log:     log.With(zap.String("service", "quote")),
	}
}

func (s *quoteService) Quote(ctx context.Context, activityID string, req *request.QuoteRequest) (*response.QuoteResponse, error) {
	id, err := uuid.Parse(activityID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid activity ID", map[string]string{"id": "uuid"})
	}

	activity, err := s.repo.Activity.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find activity: %w", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	participants := entity.Participants{Adults: req.Adults, Children: req.Children, Seniors: req.Seniors}
	if participants.Total() == 0 {
		participants.Adults = 1
	}

	pricing, err := s.pricing.PriceLine(activity, participants)
	if err != nil {
		return nil, err
	}
	adult, child, senior := s.pricing.TierPrices(activity)

	resp := &response.QuoteResponse{
		ActivityID:   activity.ID.String(),
		ActivityName: activity.Name,
		Currency:     activity.Currency,
		Prices:       response.TierPricesResponse{Adult: adult, Child: child, Senior: senior},
		Participants: participants.Total(),
		Pricing:      response.PricingToResponse(pricing),
	}

	if req.Date != "" {
		date, err := entity.ParseDate(req.Date)
		if err != nil {
			return nil, ErrInvalidRequest.with("Invalid date", map[string]string{"date": "datetime"})
		}
		availability := CheckAvailability(activity, date, participants.Total())
		resp.Availability = &response.AvailabilityResponse{
			Date:      entity.DateKey(date),
			Available: availability.Available,
			Reason:    string(availability.Reason),
			Message:   availability.Message,
		}
	}

	target := strings.ToUpper(req.Currency)
	if target != "" && target != activity.Currency {
		converted, err := s.convert(ctx, pricing, activity.Currency, target)
		if err != nil {
			return nil, err
		}
		resp.Converted = converted
	}

	return resp, nil
}

// convert uses one rate for every amount so the converted total still equals subtotal plus taxes.
func (s *quoteService) convert(ctx context.Context, pricing entity.Pricing, from, to string) (*response.ConvertedPriceResponse, error) {
	if s.rates == nil {
		return nil, ErrDependencyUnavailable.with("Currency conversion is not configured", nil)
	}

	subtotal, rate, err := s.rates.Convert(ctx, pricing.Subtotal, from, to, s.pricing.Precision)
	if errors.Is(err, fxrate.ErrUnsupportedCurrency) {
		return nil, ErrInvalidRequest.with("Unsupported currency", map[string]string{"currency": to})
	}
	if err != nil {
		s.log.Warn("Currency conversion failed",
			zap.Error(err),
			zap.String("from", from),
			zap.String("to", to),
		)
		return nil, ErrDependencyUnavailable.with("Exchange rates are temporarily unavailable", nil).wrap(err)
	}

	taxes := pricing.Taxes.Mul(rate).Round(s.pricing.Precision)
	return &response.ConvertedPriceResponse{
		Currency: to,
		Rate:     rate,
		Pricing: response.PricingResponse{
			Subtotal: subtotal,
			Taxes:    taxes,
			Total:    subtotal.Add(taxes),
		},
	}, nil
}
