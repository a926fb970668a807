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

type PaymentRepository interface {
	// InsertIfAbsent stores the payment unless one with the same provider
	// transaction id exists. It reports whether this call inserted the row.
	InsertIfAbsent(ctx context.Context, payment *entity.Payment) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error)
	ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Payment, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// MarkApplied claims the payment for booking and statistics side effects.
	// Only the first caller gets true.
	MarkApplied(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	HoldPayout(ctx context.Context, id uuid.UUID, at time.Time) error
}

type paymentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentRepository(db database.Querier, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `
	id, booking_id, farm_id, user_id, provider, provider_transaction_id,
	amount, currency, status, commission_rate, commission_amount,
	payout_amount, payout_status, payout_scheduled_at, applied_at,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.FarmID,
		&p.UserID,
		&p.Provider,
		&p.ProviderTransactionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.CommissionRate,
		&p.CommissionAmount,
		&p.PayoutAmount,
		&p.PayoutStatus,
		&p.PayoutScheduledAt,
		&p.AppliedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) InsertIfAbsent(ctx context.Context, payment *entity.Payment) (bool, error) {
	query := `
		INSERT INTO payments (id, booking_id, farm_id, user_id, provider, provider_transaction_id,
		                      amount, currency, status, commission_rate, commission_amount,
		                      payout_amount, payout_status, payout_scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (provider_transaction_id) DO NOTHING
		RETURNING id
	`

	var id uuid.UUID
	err := database.Conn(ctx, r.db).QueryRow(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.FarmID,
		payment.UserID,
		payment.Provider,
		payment.ProviderTransactionID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CommissionRate,
		payment.CommissionAmount,
		payment.PayoutAmount,
		payment.PayoutStatus,
		payment.PayoutScheduledAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.log.Error("Failed to insert payment",
			zap.Error(err),
			zap.String("transaction_id", payment.ProviderTransactionID),
			zap.String("booking_id", payment.BookingID.String()),
		)
		return false, fmt.Errorf("insert payment %s: %w", payment.ProviderTransactionID, err)
	}

	return true, nil
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_transaction_id = $1`

	payment, err := scanPayment(database.Conn(ctx, r.db).QueryRow(ctx, query, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by transaction ID",
			zap.Error(err),
			zap.String("transaction_id", transactionID),
		)
		return nil, fmt.Errorf("find payment by transaction ID %s: %w", transactionID, err)
	}

	return payment, nil
}

func (r *paymentRepository) ExistsForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE booking_id = $1 AND status = 'completed')`

	var exists bool
	if err := database.Conn(ctx, r.db).QueryRow(ctx, query, bookingID).Scan(&exists); err != nil {
		r.log.Error("Failed to check payment for booking",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return false, fmt.Errorf("check payment for booking %s: %w", bookingID.String(), err)
	}

	return exists, nil
}

func (r *paymentRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find payments by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find payments by user ID %s: %w", userID.String(), err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			r.log.Error("Failed to scan payment row", zap.Error(err))
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

func (r *paymentRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count payments by user ID",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return 0, fmt.Errorf("count payments by user ID %s: %w", userID.String(), err)
	}

	return count, nil
}

func (r *paymentRepository) MarkApplied(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET applied_at = $2, updated_at = $2
		WHERE id = $1 AND applied_at IS NULL
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to mark payment applied",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return false, fmt.Errorf("mark payment %s applied: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) HoldPayout(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE payments SET payout_status = 'on_hold', updated_at = $2 WHERE id = $1`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to hold payout",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return fmt.Errorf("hold payout for payment %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", id.String())
	}

	return nil
}
