package usecase

import (
	"context"
	"time"

	"agro-booking/internal/data/entity"

	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

// notifier emits booking events. Failures are logged and never fail the caller.
type notifier struct {
	events EventPublisher
	log    *zap.Logger
}

func newNotifier(events EventPublisher, log *zap.Logger) *notifier {
	return &notifier{
		events: events,
		log:    log.With(zap.String("component", "notifier")),
	}
}

func (n *notifier) bookingCreated(ctx context.Context, b *entity.Booking, at time.Time) {
	n.publish(ctx, entity.EventBookingCreated, entity.Notification{
		Event:            entity.EventBookingCreated,
		Template:         entity.TemplateBookingConfirmation,
		Recipient:        b.ContactInfo.Email,
		BookingID:        b.ID,
		ConfirmationCode: b.ConfirmationCode,
		Status:           b.Status,
		OccurredAt:       at,
	})
}

func (n *notifier) statusChanged(ctx context.Context, b *entity.Booking, reason string, at time.Time) {
	template := entity.TemplateBookingStatusUpdate
	if b.Status == entity.BookingStatusCancelled {
		template = entity.TemplateBookingCancelled
	}

	n.publish(ctx, entity.EventBookingStatusChanged, entity.Notification{
		Event:            entity.EventBookingStatusChanged,
		Template:         template,
		Recipient:        b.ContactInfo.Email,
		BookingID:        b.ID,
		ConfirmationCode: b.ConfirmationCode,
		Status:           b.Status,
		Reason:           reason,
		OccurredAt:       at,
	})
}

func (n *notifier) publish(ctx context.Context, key string, msg entity.Notification) {
	if n.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.events.PublishJSON(ctx, key, msg); err != nil {
		n.log.Error("Failed to publish notification",
			zap.Error(err),
			zap.String("event", key),
			zap.String("booking_id", msg.BookingID.String()),
		)
	}
}
