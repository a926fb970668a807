package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/data/repository"
	"agro-booking/internal/dto/request"
	"agro-booking/internal/dto/response"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxCodeAttempts bounds confirmation code regeneration on collision.
const maxCodeAttempts = 5

type BookingService interface {
	// Tourist endpoints
	CreateBooking(ctx context.Context, caller entity.Caller, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetUserBookings(ctx context.Context, caller entity.Caller, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetBooking(ctx context.Context, caller entity.Caller, bookingID string) (*response.BookingDetailResponse, error)
	GetBookingByCode(ctx context.Context, caller entity.Caller, code string) (*response.BookingDetailResponse, error)
	ModifyBooking(ctx context.Context, caller entity.Caller, bookingID string, req *request.ModifyBookingRequest) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, caller entity.Caller, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error)

	// Farm owner endpoints
	UpdateStatus(ctx context.Context, caller entity.Caller, bookingID string, req *request.UpdateBookingStatusRequest) (*response.BookingResponse, error)
}

// BookingLedger is the booking write path used by payment reconciliation.
type BookingLedger interface {
	// ConfirmPayment moves a pending booking to confirmed and records the payment on it.
	// It returns ErrInvalidTransition when the booking is no longer pending.
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, payment entity.BookingPayment) (*entity.Booking, error)
}

type bookingService struct {
	repo    *repository.Repository
	pricing PricingCalculator
	notify  *notifier
	now     func() time.Time
	newCode func() (string, error)
	log     *zap.Logger
}

func newBookingService(repo *repository.Repository, pricing PricingCalculator, notify *notifier, deps Deps, log *zap.Logger) *bookingService {
	return &bookingService{
		repo:    repo,
		pricing: pricing,
		notify:  notify,
		now:     deps.Now,
		newCode: deps.NewCode,
		log:     log.With(zap.String("service", "booking")),
	}
}

// ==================== CREATE ====================

func (s *bookingService) CreateBooking(ctx context.Context, caller entity.Caller, req *request.CreateBookingRequest) (_ *response.BookingResponse, err error) {
	ctx, span := startSpan(ctx, "booking.create",
		attribute.String("user_id", caller.UserID.String()),
		attribute.String("farm_id", req.FarmID),
	)
	defer func() { endSpan(span, err) }()

	if !caller.Can(entity.CapBook) {
		return nil, ErrAccessDenied.with("Not allowed to create bookings", nil)
	}

	farmID, err := uuid.Parse(req.FarmID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid farm ID", map[string]string{"farm_id": "uuid"})
	}

	farm, err := s.repo.Farm.FindByID(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("find farm: %w", err)
	}
	if farm == nil || !farm.Bookable() {
		return nil, ErrFarmUnavailable
	}

	lines, pricing, currency, err := s.buildLines(ctx, farm.ID, req.Activities)
	if err != nil {
		return nil, err
	}

	now := s.now()
	booking := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:       caller.UserID,
		FarmID:       farm.ID,
		Lines:        lines,
		ContactInfo:  contactFromRequest(req.ContactInfo),
		GroupDetails: groupFromRequest(req.GroupDetails),
		Pricing:      pricing,
		Currency:     currency,
		Status:       entity.BookingStatusPending,
		Payment:      entity.BookingPayment{Status: entity.PaymentStatusPending},
	}

	if err := s.insertWithUniqueCode(ctx, booking, caller.UserID); err != nil {
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("confirmation_code", booking.ConfirmationCode),
		zap.String("user_id", caller.UserID.String()),
		zap.String("farm_id", farm.ID.String()),
		zap.Int("activity_count", len(lines)),
		zap.String("total", pricing.Total.String()),
		zap.String("currency", currency),
	)

	s.notify.bookingCreated(ctx, booking, now)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// insertWithUniqueCode persists booking with its lines and first history entry,
// regenerating the confirmation code when it collides.
func (s *bookingService) insertWithUniqueCode(ctx context.Context, booking *entity.Booking, actorID uuid.UUID) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return fmt.Errorf("generate confirmation code: %w", err)
		}
		booking.ConfirmationCode = code

		err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Booking.Create(ctx, booking); err != nil {
				return err
			}
			return s.repo.Booking.AddStatusChange(ctx, &entity.StatusChange{
				BookingID: booking.ID,
				To:        entity.BookingStatusPending,
				Reason:    "Booking created",
				ActorID:   &actorID,
				At:        booking.CreatedAt,
			})
		})
		if errors.Is(err, repository.ErrDuplicateConfirmationCode) {
			s.log.Warn("Confirmation code collision, regenerating",
				zap.String("confirmation_code", code),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return nil
	}

	return fmt.Errorf("create booking: no unique confirmation code after %d attempts", maxCodeAttempts)
}

// buildLines validates every requested activity and prices it. Nothing is
// returned unless all lines pass.
func (s *bookingService) buildLines(ctx context.Context, farmID uuid.UUID, reqs []request.ActivityLineRequest) ([]entity.BookingLine, entity.Pricing, string, error) {
	if len(reqs) == 0 {
		return nil, entity.Pricing{}, "", ErrInvalidRequest.with("At least one activity is required", map[string]string{"activities": "required"})
	}

	lines := make([]entity.BookingLine, 0, len(reqs))
	currency := ""

	for i, item := range reqs {
		field := fmt.Sprintf("activities[%d]", i)

		activityID, err := uuid.Parse(item.ActivityID)
		if err != nil {
			return nil, entity.Pricing{}, "", ErrInvalidRequest.with("Invalid activity ID", map[string]string{field + ".activity_id": "uuid"})
		}
		date, err := entity.ParseDate(item.Date)
		if err != nil {
			return nil, entity.Pricing{}, "", ErrInvalidRequest.with("Invalid activity date", map[string]string{field + ".date": "datetime"})
		}

		activity, err := s.repo.Activity.FindByID(ctx, activityID)
		if err != nil {
			return nil, entity.Pricing{}, "", fmt.Errorf("find activity: %w", err)
		}
		if activity == nil || activity.FarmID != farmID {
			return nil, entity.Pricing{}, "", ErrActivityNotFound.with("", map[string]string{field + ".activity_id": item.ActivityID})
		}

		participants := entity.Participants{
			Adults:   item.Participants.Adults,
			Children: item.Participants.Children,
			Seniors:  item.Participants.Seniors,
		}
		if participants.Total() == 0 {
			return nil, entity.Pricing{}, "", ErrInvalidParticipants.with("", map[string]string{field + ".participants": "required"})
		}

		availability := CheckAvailability(activity, date, participants.Total())
		if !availability.Available {
			return nil, entity.Pricing{}, "", ErrNotAvailable.with(availability.Message, map[string]string{field: string(availability.Reason)})
		}

		if currency == "" {
			currency = activity.Currency
		} else if activity.Currency != currency {
			return nil, entity.Pricing{}, "", ErrMixedCurrency.with("", map[string]string{field + ".activity_id": activity.Currency})
		}

		pricing, err := s.pricing.PriceLine(activity, participants)
		if err != nil {
			return nil, entity.Pricing{}, "", err
		}

		lines = append(lines, entity.BookingLine{
			ActivityID:   activity.ID,
			ActivityName: activity.Name,
			Date:         date,
			Participants: participants,
			Pricing:      pricing,
		})
	}

	return lines, s.pricing.Sum(lines), currency, nil
}

// ==================== READ ====================

func (s *bookingService) GetBooking(ctx context.Context, caller entity.Caller, bookingID string) (*response.BookingDetailResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid booking ID", map[string]string{"id": "uuid"})
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return s.detail(ctx, caller, booking)
}

func (s *bookingService) GetBookingByCode(ctx context.Context, caller entity.Caller, code string) (*response.BookingDetailResponse, error) {
	booking, err := s.repo.Booking.FindByConfirmationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get booking by confirmation code: %w", err)
	}
	return s.detail(ctx, caller, booking)
}

func (s *bookingService) detail(ctx context.Context, caller entity.Caller, booking *entity.Booking) (*response.BookingDetailResponse, error) {
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	allowed, err := s.canView(ctx, caller, booking)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.log.Warn("Booking access denied",
			zap.String("booking_id", booking.ID.String()),
			zap.String("user_id", caller.UserID.String()),
		)
		return nil, ErrAccessDenied
	}

	history, err := s.repo.Booking.FindStatusHistory(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("get booking history: %w", err)
	}

	resp := response.BookingToDetailResponse(booking, history)
	return &resp, nil
}

// canView allows the tourist who booked, the owner of the farm and callers with CapViewAnyBooking.
func (s *bookingService) canView(ctx context.Context, caller entity.Caller, booking *entity.Booking) (bool, error) {
	if booking.UserID == caller.UserID || caller.Can(entity.CapViewAnyBooking) {
		return true, nil
	}
	if !caller.Can(entity.CapManageFarmBooking) {
		return false, nil
	}
	return s.ownsFarm(ctx, caller, booking.FarmID)
}

func (s *bookingService) ownsFarm(ctx context.Context, caller entity.Caller, farmID uuid.UUID) (bool, error) {
	farm, err := s.repo.Farm.FindByID(ctx, farmID)
	if err != nil {
		return false, fmt.Errorf("find farm: %w", err)
	}
	return farm != nil && farm.OwnerID == caller.UserID, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, caller entity.Caller, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.repo.Booking.FindByUserID(ctx, caller.UserID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to get user bookings",
			zap.Error(err),
			zap.String("user_id", caller.UserID.String()),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, fmt.Errorf("get user bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUserID(ctx, caller.UserID)
	if err != nil {
		s.log.Error("Failed to count user bookings", zap.Error(err))
		return nil, fmt.Errorf("count user bookings: %w", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = response.BookingToResponse(b)
	}

	s.log.Debug("User bookings retrieved",
		zap.String("user_id", caller.UserID.String()),
		zap.Int("count", len(bookings)),
		zap.Int64("total", total),
	)

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

// ==================== MODIFY ====================

func (s *bookingService) ModifyBooking(ctx context.Context, caller entity.Caller, bookingID string, req *request.ModifyBookingRequest) (*response.BookingResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid booking ID", map[string]string{"id": "uuid"})
	}

	var updated *entity.Booking
	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.repo.Booking.FindByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		if booking.UserID != caller.UserID {
			return ErrAccessDenied
		}
		if booking.Status != entity.BookingStatusPending {
			return ErrInvalidTransition.with("Only pending bookings can be modified", nil)
		}

		if req.ContactInfo != nil {
			booking.ContactInfo = contactFromRequest(*req.ContactInfo)
		}
		if req.GroupDetails != nil {
			booking.GroupDetails = groupFromRequest(*req.GroupDetails)
		}

		if len(req.Activities) > 0 {
			farm, err := s.repo.Farm.FindByID(ctx, booking.FarmID)
			if err != nil {
				return fmt.Errorf("find farm: %w", err)
			}
			if farm == nil || !farm.Bookable() {
				return ErrFarmUnavailable
			}

			lines, pricing, currency, err := s.buildLines(ctx, booking.FarmID, req.Activities)
			if err != nil {
				return err
			}
			if err := s.repo.Booking.ReplaceLines(ctx, booking.ID, lines); err != nil {
				return err
			}
			booking.Lines = lines
			booking.Pricing = pricing
			booking.Currency = currency
		}

		booking.UpdatedAt = s.now()
		ok, err := s.repo.Booking.UpdateDetails(ctx, booking)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition.with("Only pending bookings can be modified", nil)
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking modified",
		zap.String("booking_id", updated.ID.String()),
		zap.String("user_id", caller.UserID.String()),
		zap.Bool("activities_changed", len(req.Activities) > 0),
		zap.String("total", updated.Pricing.Total.String()),
	)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// ==================== STATUS TRANSITIONS ====================

func (s *bookingService) CancelBooking(ctx context.Context, caller entity.Caller, bookingID string, req *request.CancelBookingRequest) (_ *response.BookingResponse, err error) {
	ctx, span := startSpan(ctx, "booking.cancel", attribute.String("booking_id", bookingID))
	defer func() { endSpan(span, err) }()

	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid booking ID", map[string]string{"id": "uuid"})
	}

	now := s.now()
	var cancelled *entity.Booking

	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.repo.Booking.FindByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		if booking.UserID != caller.UserID {
			return ErrAccessDenied
		}
		if booking.Status == entity.BookingStatusCancelled {
			return ErrAlreadyCancelled
		}
		if !booking.Status.CanTransitionTo(entity.BookingStatusCancelled) {
			return ErrInvalidTransition.with(fmt.Sprintf("Cannot cancel a %s booking", booking.Status), nil)
		}

		paid, err := s.repo.Payment.ExistsForBooking(ctx, booking.ID)
		if err != nil {
			return err
		}
		if paid {
			return ErrPaymentCommitted
		}

		cancellation := &entity.Cancellation{
			Reason:      req.Reason,
			CancelledBy: caller.UserID,
			CancelledAt: now,
		}
		if err := s.transition(ctx, booking, entity.BookingStatusCancelled, cancellation, req.Reason, caller.UserID, now); err != nil {
			return err
		}

		cancelled = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", cancelled.ID.String()),
		zap.String("user_id", caller.UserID.String()),
		zap.String("reason", req.Reason),
	)

	s.notify.statusChanged(ctx, cancelled, req.Reason, now)

	resp := response.BookingToResponse(cancelled)
	return &resp, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, caller entity.Caller, bookingID string, req *request.UpdateBookingStatusRequest) (_ *response.BookingResponse, err error) {
	ctx, span := startSpan(ctx, "booking.update_status",
		attribute.String("booking_id", bookingID),
		attribute.String("status", req.Status),
	)
	defer func() { endSpan(span, err) }()

	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, ErrInvalidRequest.with("Invalid booking ID", map[string]string{"id": "uuid"})
	}
	target := entity.BookingStatus(req.Status)
	switch target {
	case entity.BookingStatusCompleted, entity.BookingStatusNoShow, entity.BookingStatusCancelled:
	default:
		return nil, ErrInvalidRequest.with("Invalid status", map[string]string{"status": "oneof"})
	}

	if !caller.Can(entity.CapManageFarmBooking) {
		return nil, ErrAccessDenied.with("Only farm owners can update booking status", nil)
	}

	now := s.now()
	var (
		updated  *entity.Booking
		previous entity.BookingStatus
	)

	err = s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.repo.Booking.FindByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return ErrBookingNotFound
		}

		owner, err := s.ownsFarm(ctx, caller, booking.FarmID)
		if err != nil {
			return err
		}
		if !owner {
			return ErrAccessDenied
		}

		if booking.Status == entity.BookingStatusPending {
			return ErrInvalidTransition.with("Booking must be confirmed before its status can be updated", nil)
		}
		if booking.Status == entity.BookingStatusCancelled && target == entity.BookingStatusCancelled {
			return ErrAlreadyCancelled
		}
		if !booking.Status.CanTransitionTo(target) {
			return ErrInvalidTransition.with(fmt.Sprintf("Cannot change a %s booking to %s", booking.Status, target), nil)
		}

		var cancellation *entity.Cancellation
		if target == entity.BookingStatusCancelled {
			paid, err := s.repo.Payment.ExistsForBooking(ctx, booking.ID)
			if err != nil {
				return err
			}
			if paid {
				return ErrPaymentCommitted
			}
			cancellation = &entity.Cancellation{
				Reason:      req.Reason,
				CancelledBy: caller.UserID,
				CancelledAt: now,
			}
		}

		previous = booking.Status
		if err := s.transition(ctx, booking, target, cancellation, req.Reason, caller.UserID, now); err != nil {
			return err
		}

		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking status updated",
		zap.String("booking_id", updated.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
		zap.String("farm_owner_id", caller.UserID.String()),
	)

	s.notify.statusChanged(ctx, updated, req.Reason, now)

	resp := response.BookingToResponse(updated)
	return &resp, nil
}

// transition applies a guarded status change and appends it to the history.
// booking is updated in place.
func (s *bookingService) transition(ctx context.Context, booking *entity.Booking, to entity.BookingStatus, cancellation *entity.Cancellation, reason string, actorID uuid.UUID, at time.Time) error {
	from := booking.Status

	ok, err := s.repo.Booking.UpdateStatus(ctx, booking.ID, from, to, cancellation, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition.with("Booking was changed concurrently", nil)
	}

	if err := s.repo.Booking.AddStatusChange(ctx, &entity.StatusChange{
		BookingID: booking.ID,
		From:      &from,
		To:        to,
		Reason:    reason,
		ActorID:   &actorID,
		At:        at,
	}); err != nil {
		return err
	}

	booking.Status = to
	booking.UpdatedAt = at
	if cancellation != nil {
		booking.Cancellation = cancellation
	}
	return nil
}

// ==================== LEDGER ====================

func (s *bookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, payment entity.BookingPayment) (*entity.Booking, error) {
	now := s.now()
	var confirmed *entity.Booking

	err := s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.repo.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		if booking.Status != entity.BookingStatusPending {
			confirmed = booking
			return ErrInvalidTransition.with(fmt.Sprintf("Booking is %s, not awaiting payment", booking.Status), nil)
		}

		ok, err := s.repo.Booking.MarkPaid(ctx, booking.ID, payment, now)
		if err != nil {
			return err
		}
		if !ok {
			confirmed = booking
			return ErrInvalidTransition.with("Booking was changed concurrently", nil)
		}

		from := entity.BookingStatusPending
		if err := s.repo.Booking.AddStatusChange(ctx, &entity.StatusChange{
			BookingID: booking.ID,
			From:      &from,
			To:        entity.BookingStatusConfirmed,
			Reason:    "Payment received",
			At:        now,
		}); err != nil {
			return err
		}

		booking.Status = entity.BookingStatusConfirmed
		booking.Payment = payment
		booking.UpdatedAt = now
		confirmed = booking
		return nil
	})

	return confirmed, err
}

func contactFromRequest(req request.ContactInfoRequest) entity.ContactInfo {
	return entity.ContactInfo{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		SpecialNeeds:  req.SpecialNeeds,
		DietaryNeeds:  req.DietaryNeeds,
		EmergencyName: req.EmergencyName,
		EmergencyTel:  req.EmergencyPhone,
	}
}

func groupFromRequest(req request.GroupDetailsRequest) entity.GroupDetails {
	return entity.GroupDetails{
		GroupName:    req.GroupName,
		GroupType:    req.GroupType,
		Requirements: req.Requirements,
	}
}
