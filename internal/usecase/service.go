package usecase

import (
	"context"
	"time"

	"agro-booking/internal/data/repository"
	"agro-booking/internal/gateway"
	"agro-booking/pkg/queue"
	"agro-booking/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher delivers outbound notification events.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// TaskPublisher enqueues work for the background worker.
type TaskPublisher interface {
	Publish(ctx context.Context, task *queue.Task) error
}

// RateSource converts amounts between currencies.
type RateSource interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, places int32) (decimal.Decimal, decimal.Decimal, error)
}

// Deps are the external collaborators of the services. Retries and Rates are optional.
type Deps struct {
	Gateway gateway.Gateway
	Events  EventPublisher
	Retries TaskPublisher
	Rates   RateSource
	Now     func() time.Time
	NewCode func() (string, error)
}

type Service struct {
	Booking BookingService
	Payment PaymentService
	Webhook WebhookService
	Stats   StatsService
	Quote   QuoteService
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewCode == nil {
		deps.NewCode = utils.GenerateConfirmationCode
	}

	pricing := NewPricingCalculator(config.Pricing.TaxRate, config.Pricing.Precision)
	notify := newNotifier(deps.Events, log)

	stats := NewStatsService(repo, log)
	booking := newBookingService(repo, pricing, notify, deps, log)

	return &Service{
		Booking: booking,
		Payment: NewPaymentService(repo, deps.Gateway, log),
		Webhook: NewWebhookService(repo, booking, stats, notify, deps, config.Pricing, log),
		Stats:   stats,
		Quote:   NewQuoteService(repo, pricing, deps.Rates, log),
	}
}
