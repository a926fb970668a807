package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/internal/gateway"
	"agro-booking/pkg/queue"
	"agro-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TaskReconcilePayment is the retry queue task carrying a gateway.PaymentEvent.
const TaskReconcilePayment queue.TaskType = "payment.reconcile"

type WebhookOutcome string

const (
	// OutcomeProcessed: payment recorded, booking confirmed, statistics updated.
	OutcomeProcessed WebhookOutcome = "processed"
	// OutcomeHeld: payment recorded but the booking was no longer pending; payout on hold.
	OutcomeHeld WebhookOutcome = "held"
	// OutcomeDuplicate: the transaction was already applied.
	OutcomeDuplicate WebhookOutcome = "duplicate"
	// OutcomeIgnored: event type is not a successful payment.
	OutcomeIgnored WebhookOutcome = "ignored"
	// OutcomeAnomaly: authentic event that cannot be decoded or matched to a booking.
	OutcomeAnomaly WebhookOutcome = "anomaly"
	// OutcomeDeferred: processing failed and was handed to the retry queue.
	OutcomeDeferred WebhookOutcome = "deferred"
)

type WebhookService interface {
	// HandleWebhook authenticates and applies one provider callback. It only fails
	// when the signature is invalid; undecodable events are reported as anomalies
	// and processing failures are deferred to the retry queue.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error)
	// Reconcile applies a verified event. Safe to call any number of times.
	Reconcile(ctx context.Context, event *gateway.PaymentEvent) (WebhookOutcome, error)
	// ProcessTask is the retry queue handler for TaskReconcilePayment.
	ProcessTask(ctx context.Context, task *queue.Task) error
}

type webhookService struct {
	repo           *repository.Repository
	ledger         BookingLedger
	stats          StatsService
	notify         *notifier
	gateway        gateway.Gateway
	retries        TaskPublisher
	commissionRate decimal.Decimal
	payoutDelay    time.Duration
	precision      int32
	now            func() time.Time
	log            *zap.Logger
}

func NewWebhookService(repo *repository.Repository, ledger BookingLedger, stats StatsService, notify *notifier, deps Deps, pricing utils.PricingConfig, log *zap.Logger) WebhookService {
	return &webhookService{
		repo:           repo,
		ledger:         ledger,
		stats:          stats,
		notify:         notify,
		gateway:        deps.Gateway,
		retries:        deps.Retries,
		commissionRate: decimal.NewFromFloat(pricing.CommissionRate),
		payoutDelay:    time.Duration(pricing.PayoutDelayDays) * 24 * time.Hour,
		precision:      pricing.Precision,
		now:            deps.Now,
		log:            log.With(zap.String("service", "webhook")),
	}
}

func (s *webhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.gateway.ParseEvent(payload, signature)
	if errors.Is(err, gateway.ErrInvalidSignature) {
		s.log.Warn("Webhook signature verification failed", zap.Error(err))
		return "", ErrInvalidSignature.wrap(err)
	}
	if err != nil {
		// Authentic but unusable: redelivery would fail the same way.
		s.log.Error("Webhook anomaly: authentic event could not be decoded, manual reconciliation required",
			zap.Error(err),
			zap.ByteString("payload", payload),
		)
		return OutcomeAnomaly, nil
	}

	if !event.Succeeded() {
		s.log.Debug("Webhook event ignored",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type),
		)
		return OutcomeIgnored, nil
	}

	outcome, err := s.Reconcile(ctx, event)
	if err == nil {
		return outcome, nil
	}

	s.deferToRetryQueue(ctx, event, err)
	return OutcomeDeferred, nil
}

// deferToRetryQueue hands a failed event to the retry queue. When that fails too the
// event is logged in full so it can be reconciled by hand.
func (s *webhookService) deferToRetryQueue(ctx context.Context, event *gateway.PaymentEvent, cause error) {
	fields := []zap.Field{
		zap.Error(cause),
		zap.String("event_id", event.EventID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("booking_id", event.BookingID),
	}

	if s.retries == nil {
		s.log.Error("Payment reconciliation failed, no retry queue configured, manual reconciliation required",
			append(fields, zap.Any("event", event))...)
		return
	}

	task, err := queue.NewTask(TaskReconcilePayment, event)
	if err == nil {
		err = s.retries.Publish(context.WithoutCancel(ctx), task)
	}
	if err != nil {
		s.log.Error("Payment reconciliation failed and could not be queued, manual reconciliation required",
			append(fields, zap.NamedError("queue_error", err), zap.Any("event", event))...)
		return
	}

	s.log.Warn("Payment reconciliation deferred to retry queue",
		append(fields, zap.String("task_id", task.ID))...)
}

func (s *webhookService) ProcessTask(ctx context.Context, task *queue.Task) error {
	if task.Type != TaskReconcilePayment {
		return queue.Permanent(fmt.Errorf("unexpected task type %q", task.Type))
	}

	var event gateway.PaymentEvent
	if err := json.Unmarshal(task.Payload, &event); err != nil {
		return queue.Permanent(fmt.Errorf("decode payment event: %w", err))
	}

	outcome, err := s.Reconcile(ctx, &event)
	if err != nil {
		return err
	}

	s.log.Info("Queued payment reconciled",
		zap.String("task_id", task.ID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("outcome", string(outcome)),
		zap.Int("attempt", task.Attempts),
	)
	return nil
}

func (s *webhookService) Reconcile(ctx context.Context, event *gateway.PaymentEvent) (_ WebhookOutcome, err error) {
	ctx, span := startSpan(ctx, "payment.reconcile",
		attribute.String("transaction_id", event.TransactionID),
		attribute.String("booking_id", event.BookingID),
	)
	defer func() { endSpan(span, err) }()

	if event.TransactionID == "" {
		s.log.Error("Payment event without transaction ID", zap.String("event_id", event.EventID))
		return OutcomeAnomaly, nil
	}

	record, err := s.repo.Payment.FindByTransactionID(ctx, event.TransactionID)
	if err != nil {
		return "", err
	}
	if record != nil && record.Applied() {
		s.logDuplicate(event)
		return OutcomeDuplicate, nil
	}

	if record == nil {
		booking, err := s.findBooking(ctx, event)
		if err != nil {
			return "", err
		}
		if booking == nil {
			return OutcomeAnomaly, nil
		}

		record = s.newPaymentRecord(event, booking)
		inserted, err := s.repo.Payment.InsertIfAbsent(ctx, record)
		if err != nil {
			return "", err
		}
		if !inserted {
			// a concurrent delivery stored it first
			record, err = s.repo.Payment.FindByTransactionID(ctx, event.TransactionID)
			if err != nil {
				return "", err
			}
			if record == nil {
				return "", fmt.Errorf("payment %s not found after insert conflict", event.TransactionID)
			}
			if record.Applied() {
				s.logDuplicate(event)
				return OutcomeDuplicate, nil
			}
		}
	}

	return s.apply(ctx, record)
}

// findBooking returns nil for events that reference no known booking.
func (s *webhookService) findBooking(ctx context.Context, event *gateway.PaymentEvent) (*entity.Booking, error) {
	bookingID, err := uuid.Parse(event.BookingID)
	if err != nil {
		s.log.Error("Payment received for unknown booking",
			zap.String("transaction_id", event.TransactionID),
			zap.String("booking_id", event.BookingID),
			zap.Int64("amount_minor", event.AmountMinor),
			zap.String("currency", event.Currency),
		)
		return nil, nil
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		s.log.Error("Payment received for unknown booking",
			zap.String("transaction_id", event.TransactionID),
			zap.String("booking_id", event.BookingID),
			zap.Int64("amount_minor", event.AmountMinor),
			zap.String("currency", event.Currency),
		)
		return nil, nil
	}

	if !event.Amount().Equal(booking.Pricing.Total) || event.Currency != booking.Currency {
		s.log.Warn("Payment amount differs from booking total",
			zap.String("transaction_id", event.TransactionID),
			zap.String("booking_id", booking.ID.String()),
			zap.String("paid", event.Amount().String()+" "+event.Currency),
			zap.String("expected", booking.Pricing.Total.String()+" "+booking.Currency),
		)
	}
	return booking, nil
}

// newPaymentRecord derives commission and payout from the amount actually paid.
func (s *webhookService) newPaymentRecord(event *gateway.PaymentEvent, booking *entity.Booking) *entity.Payment {
	now := s.now()
	amount := event.Amount()
	commission := amount.Mul(s.commissionRate).Round(s.precision)

	return &entity.Payment{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		BookingID:             booking.ID,
		FarmID:                booking.FarmID,
		UserID:                booking.UserID,
		Provider:              s.gateway.Name(),
		ProviderTransactionID: event.TransactionID,
		Amount:                amount,
		Currency:              event.Currency,
		Status:                entity.PaymentStatusCompleted,
		CommissionRate:        s.commissionRate,
		CommissionAmount:      commission,
		PayoutAmount:          amount.Sub(commission),
		PayoutStatus:          entity.PayoutStatusPending,
		PayoutScheduledAt:     now.Add(s.payoutDelay),
	}
}

// apply runs the booking and statistics side effects exactly once per payment.
// MarkApplied is the claim; a concurrent or replayed delivery loses it and stops.
func (s *webhookService) apply(ctx context.Context, record *entity.Payment) (WebhookOutcome, error) {
	now := s.now()
	outcome := OutcomeProcessed
	var confirmed *entity.Booking

	err := s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		claimed, err := s.repo.Payment.MarkApplied(ctx, record.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			outcome = OutcomeDuplicate
			return nil
		}

		txID := record.ProviderTransactionID
		booking, err := s.ledger.ConfirmPayment(ctx, record.BookingID, entity.BookingPayment{
			Status:        entity.PaymentStatusCompleted,
			TransactionID: &txID,
			PaidAmount:    decimal.NewNullDecimal(record.Amount),
			PaidAt:        &now,
		})
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrBookingNotFound) {
			if err := s.repo.Payment.HoldPayout(ctx, record.ID, now); err != nil {
				return err
			}
			status := "missing"
			if booking != nil {
				status = string(booking.Status)
			}
			s.log.Error("Payment received for booking not awaiting payment, payout held, refund required",
				zap.String("transaction_id", record.ProviderTransactionID),
				zap.String("booking_id", record.BookingID.String()),
				zap.String("booking_status", status),
				zap.String("amount", record.Amount.String()),
			)
			outcome = OutcomeHeld
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.stats.Apply(ctx, record.FarmID, record.Amount); err != nil {
			return err
		}

		confirmed = booking
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeDuplicate {
		s.log.Info("Payment already applied by a concurrent delivery",
			zap.String("transaction_id", record.ProviderTransactionID))
		return outcome, nil
	}

	if confirmed != nil {
		s.log.Info("Payment applied, booking confirmed",
			zap.String("transaction_id", record.ProviderTransactionID),
			zap.String("booking_id", confirmed.ID.String()),
			zap.String("amount", record.Amount.String()),
			zap.String("commission", record.CommissionAmount.String()),
			zap.Time("payout_scheduled_at", record.PayoutScheduledAt),
		)
		s.notify.statusChanged(ctx, confirmed, "Payment received", now)
	}

	return outcome, nil
}

func (s *webhookService) logDuplicate(event *gateway.PaymentEvent) {
	s.log.Info("Duplicate payment event acknowledged",
		zap.String("event_id", event.EventID),
		zap.String("transaction_id", event.TransactionID),
	)
}
