package usecase

import (
	"context"
	"fmt"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/internal/dto/request"
	"agro-booking/internal/dto/response"
	"agro-booking/internal/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	CreateIntent(ctx context.Context, caller entity.Caller, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error)
	GetUserPayments(ctx context.Context, caller entity.Caller, req *request.PaginatedRequest) (*response.PaginatedResponse[response.PaymentResponse], error)
}

type paymentService struct {
	repo    *repository.Repository
	gateway gateway.Gateway
	log     *zap.Logger
}

func NewPaymentService(repo *repository.Repository, gw gateway.Gateway, log *zap.Logger) PaymentService {
	return &paymentService{
		repo:    repo,
		gateway: gw,
		log:     log.With(zap.String("service", "payment")),
	}
}

// CreateIntent opens a provider payment for the booking total. The booking is
// only confirmed later, when the provider calls back.
func (s *paymentService) CreateIntent(ctx context.Context, caller entity.Caller, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error) {
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid booking ID", map[string]string{"booking_id": "uuid"})
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.UserID != caller.UserID {
		return nil, ErrAccessDenied
	}
	if booking.Status != entity.BookingStatusPending {
		return nil, ErrInvalidTransition.with(fmt.Sprintf("Booking is %s, not awaiting payment", booking.Status), nil)
	}

	amountMinor := gateway.ToMinorUnits(booking.Pricing.Total)
	intent, err := s.gateway.CreateIntent(ctx, amountMinor, booking.Currency, map[string]string{
		"booking_id":        booking.ID.String(),
		"user_id":           booking.UserID.String(),
		"confirmation_code": booking.ConfirmationCode,
	})
	if err != nil {
		s.log.Error("Failed to create payment intent",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("provider", s.gateway.Name()),
		)
		return nil, ErrDependencyUnavailable.with("Payment provider is temporarily unavailable", nil).wrap(err)
	}

	s.log.Info("Payment intent created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("intent_id", intent.ProviderID),
		zap.Int64("amount_minor", amountMinor),
		zap.String("currency", booking.Currency),
	)

	return &response.PaymentIntentResponse{
		BookingID:    booking.ID.String(),
		Provider:     s.gateway.Name(),
		IntentID:     intent.ProviderID,
		ClientSecret: intent.ClientSecret,
		Amount:       booking.Pricing.Total,
		AmountMinor:  amountMinor,
		Currency:     booking.Currency,
	}, nil
}

func (s *paymentService) GetUserPayments(ctx context.Context, caller entity.Caller, req *request.PaginatedRequest) (*response.PaginatedResponse[response.PaymentResponse], error) {
	payments, err := s.repo.Payment.FindByUserID(ctx, caller.UserID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("get user payments: %w", err)
	}

	total, err := s.repo.Payment.CountByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("count user payments: %w", err)
	}

	items := make([]response.PaymentResponse, len(payments))
	for i, p := range payments {
		items[i] = response.PaymentToResponse(p)
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}
