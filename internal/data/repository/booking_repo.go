package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agro-booking/internal/data/entity"
	"agro-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrDuplicateConfirmationCode is returned by Create when the generated code is already taken.
var ErrDuplicateConfirmationCode = errors.New("confirmation code already exists")

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByConfirmationCode(ctx context.Context, code string) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// Guarded writes. The bool result is false when the booking was not in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, cancellation *entity.Cancellation, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, payment entity.BookingPayment, at time.Time) (bool, error)
	UpdateDetails(ctx context.Context, booking *entity.Booking) (bool, error)
	ReplaceLines(ctx context.Context, bookingID uuid.UUID, lines []entity.BookingLine) error

	AddStatusChange(ctx context.Context, change *entity.StatusChange) error
	FindStatusHistory(ctx context.Context, bookingID uuid.UUID) ([]entity.StatusChange, error)
}

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `
	id, confirmation_code, user_id, farm_id, contact_info, group_details,
	subtotal, taxes, total, currency, status,
	payment_status, payment_transaction_id, paid_amount, paid_at,
	cancellation_reason, cancelled_by, cancelled_at,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var (
		b           entity.Booking
		reason      *string
		cancelledBy *uuid.UUID
		cancelledAt *time.Time
	)

	err := row.Scan(
		&b.ID,
		&b.ConfirmationCode,
		&b.UserID,
		&b.FarmID,
		&b.ContactInfo,
		&b.GroupDetails,
		&b.Pricing.Subtotal,
		&b.Pricing.Taxes,
		&b.Pricing.Total,
		&b.Currency,
		&b.Status,
		&b.Payment.Status,
		&b.Payment.TransactionID,
		&b.Payment.PaidAmount,
		&b.Payment.PaidAt,
		&reason,
		&cancelledBy,
		&cancelledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cancelledAt != nil {
		b.Cancellation = &entity.Cancellation{CancelledAt: *cancelledAt}
		if reason != nil {
			b.Cancellation.Reason = *reason
		}
		if cancelledBy != nil {
			b.Cancellation.CancelledBy = *cancelledBy
		}
	}

	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, confirmation_code, user_id, farm_id, contact_info, group_details,
		                      subtotal, taxes, total, currency, status, payment_status,
		                      created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	conn := database.Conn(ctx, r.db)
	_, err := conn.Exec(ctx, query,
		booking.ID,
		booking.ConfirmationCode,
		booking.UserID,
		booking.FarmID,
		booking.ContactInfo,
		booking.GroupDetails,
		booking.Pricing.Subtotal,
		booking.Pricing.Taxes,
		booking.Pricing.Total,
		booking.Currency,
		booking.Status,
		booking.Payment.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if database.IsUniqueViolation(err, "bookings_confirmation_code_key") {
		return ErrDuplicateConfirmationCode
	}
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("confirmation_code", booking.ConfirmationCode),
			zap.String("user_id", booking.UserID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ConfirmationCode, err)
	}

	return r.insertLines(ctx, booking.ID, booking.Lines)
}

func (r *bookingRepository) insertLines(ctx context.Context, bookingID uuid.UUID, lines []entity.BookingLine) error {
	query := `
		INSERT INTO booking_activities (id, booking_id, position, activity_id, activity_name, booking_date,
		                                adults, children, seniors, subtotal, taxes, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	conn := database.Conn(ctx, r.db)
	for i := range lines {
		line := &lines[i]
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		line.BookingID = bookingID
		line.Position = i

		_, err := conn.Exec(ctx, query,
			line.ID,
			bookingID,
			line.Position,
			line.ActivityID,
			line.ActivityName,
			line.Date,
			line.Participants.Adults,
			line.Participants.Children,
			line.Participants.Seniors,
			line.Pricing.Subtotal,
			line.Pricing.Taxes,
			line.Pricing.Total,
		)
		if err != nil {
			r.log.Error("Failed to insert booking line",
				zap.Error(err),
				zap.String("booking_id", bookingID.String()),
				zap.Int("position", i),
			)
			return fmt.Errorf("insert booking %s line %d: %w", bookingID.String(), i, err)
		}
	}

	return nil
}

func (r *bookingRepository) findOne(ctx context.Context, query string, arg any) (*entity.Booking, error) {
	booking, err := scanBooking(database.Conn(ctx, r.db).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking",
			zap.Error(err),
			zap.Any("key", arg),
		)
		return nil, fmt.Errorf("find booking %v: %w", arg, err)
	}

	lines, err := r.findLines(ctx, []uuid.UUID{booking.ID})
	if err != nil {
		return nil, err
	}
	booking.Lines = lines[booking.ID]

	return booking, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// FindByIDForUpdate locks the booking row until the surrounding transaction ends.
func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) FindByConfirmationCode(ctx context.Context, code string) (*entity.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE confirmation_code = $1`, code)
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings by user ID %s: %w", userID.String(), err)
	}
	defer rows.Close()

	var (
		bookings []*entity.Booking
		ids      []uuid.UUID
	)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
		ids = append(ids, booking.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking rows: %w", err)
	}
	// release the connection before the lines query, a tx connection can't run two at once
	rows.Close()

	if len(ids) == 0 {
		return bookings, nil
	}

	lines, err := r.findLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		b.Lines = lines[b.ID]
	}

	return bookings, nil
}

func (r *bookingRepository) findLines(ctx context.Context, bookingIDs []uuid.UUID) (map[uuid.UUID][]entity.BookingLine, error) {
	query := `
		SELECT id, booking_id, position, activity_id, activity_name, booking_date,
		       adults, children, seniors, subtotal, taxes, total
		FROM booking_activities
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, position
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, bookingIDs)
	if err != nil {
		r.log.Error("Failed to find booking lines", zap.Error(err), zap.Int("bookings", len(bookingIDs)))
		return nil, fmt.Errorf("find booking lines: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]entity.BookingLine, len(bookingIDs))
	for rows.Next() {
		var line entity.BookingLine
		err := rows.Scan(
			&line.ID,
			&line.BookingID,
			&line.Position,
			&line.ActivityID,
			&line.ActivityName,
			&line.Date,
			&line.Participants.Adults,
			&line.Participants.Children,
			&line.Participants.Seniors,
			&line.Pricing.Subtotal,
			&line.Pricing.Taxes,
			&line.Pricing.Total,
		)
		if err != nil {
			r.log.Error("Failed to scan booking line row", zap.Error(err))
			return nil, fmt.Errorf("scan booking line row: %w", err)
		}
		result[line.BookingID] = append(result[line.BookingID], line)
	}

	return result, rows.Err()
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE user_id = $1`

	var count int64
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, cancellation *entity.Cancellation, at time.Time) (bool, error) {
	var (
		reason      *string
		cancelledBy *uuid.UUID
		cancelledAt *time.Time
	)
	if cancellation != nil {
		reason = &cancellation.Reason
		cancelledBy = &cancellation.CancelledBy
		cancelledAt = &cancellation.CancelledAt
	}

	query := `
		UPDATE bookings
		SET status = $3,
		    cancellation_reason = COALESCE($4, cancellation_reason),
		    cancelled_by = COALESCE($5, cancelled_by),
		    cancelled_at = COALESCE($6, cancelled_at),
		    updated_at = $7
		WHERE id = $1 AND status = $2
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, from, to, reason, cancelledBy, cancelledAt, at)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update booking %s status to %s: %w", id.String(), to, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *bookingRepository) MarkPaid(ctx context.Context, id uuid.UUID, payment entity.BookingPayment, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'confirmed',
		    payment_status = $2,
		    payment_transaction_id = $3,
		    paid_amount = $4,
		    paid_at = $5,
		    updated_at = $6
		WHERE id = $1 AND status = 'pending'
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query,
		id,
		payment.Status,
		payment.TransactionID,
		payment.PaidAmount,
		payment.PaidAt,
		at,
	)
	if err != nil {
		r.log.Error("Failed to mark booking paid",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return false, fmt.Errorf("mark booking %s paid: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *bookingRepository) UpdateDetails(ctx context.Context, booking *entity.Booking) (bool, error) {
	query := `
		UPDATE bookings
		SET contact_info = $2, group_details = $3,
		    subtotal = $4, taxes = $5, total = $6, currency = $7,
		    updated_at = $8
		WHERE id = $1 AND status = 'pending'
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query,
		booking.ID,
		booking.ContactInfo,
		booking.GroupDetails,
		booking.Pricing.Subtotal,
		booking.Pricing.Taxes,
		booking.Pricing.Total,
		booking.Currency,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update booking details",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return false, fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *bookingRepository) ReplaceLines(ctx context.Context, bookingID uuid.UUID, lines []entity.BookingLine) error {
	if _, err := database.Conn(ctx, r.db).Exec(ctx, `DELETE FROM booking_activities WHERE booking_id = $1`, bookingID); err != nil {
		r.log.Error("Failed to delete booking lines",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return fmt.Errorf("delete booking %s lines: %w", bookingID.String(), err)
	}

	return r.insertLines(ctx, bookingID, lines)
}

func (r *bookingRepository) AddStatusChange(ctx context.Context, change *entity.StatusChange) error {
	query := `
		INSERT INTO booking_status_history (id, booking_id, from_status, to_status, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		change.ID,
		change.BookingID,
		change.From,
		change.To,
		change.Reason,
		change.ActorID,
		change.At,
	)
	if err != nil {
		r.log.Error("Failed to add booking status change",
			zap.Error(err),
			zap.String("booking_id", change.BookingID.String()),
			zap.String("to", string(change.To)),
		)
		return fmt.Errorf("add status change for booking %s: %w", change.BookingID.String(), err)
	}

	return nil
}

func (r *bookingRepository) FindStatusHistory(ctx context.Context, bookingID uuid.UUID) ([]entity.StatusChange, error) {
	query := `
		SELECT id, booking_id, from_status, to_status, reason, actor_id, created_at
		FROM booking_status_history
		WHERE booking_id = $1
		ORDER BY created_at, id
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find booking status history",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find booking %s history: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var history []entity.StatusChange
	for rows.Next() {
		var c entity.StatusChange
		if err := rows.Scan(&c.ID, &c.BookingID, &c.From, &c.To, &c.Reason, &c.ActorID, &c.At); err != nil {
			r.log.Error("Failed to scan status change row", zap.Error(err))
			return nil, fmt.Errorf("scan status change row: %w", err)
		}
		history = append(history, c)
	}

	return history, rows.Err()
}
