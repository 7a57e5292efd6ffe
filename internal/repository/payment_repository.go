package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-reservations/internal/model"
)

// PaymentRepo provides access to the payments table.  A booking has at
// most one payment and the payment never changes booking or event state.
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = "id, booking_id, transaction_id, amount_paid, payment_method, payment_time, created_at, updated_at"

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.TransactionID, &p.AmountPaid, &p.PaymentMethod,
		&p.PaymentTime, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetByBooking returns the payment of a booking or ErrNotFound.
func (r *PaymentRepo) GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE booking_id = ?", bookingID))
}

// CreateTx inserts a payment and populates its ID.  A duplicate
// transaction id or a second payment for the booking yields ErrConflict.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, transaction_id, amount_paid, payment_method, payment_time) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.BookingID, p.TransactionID, p.AmountPaid, p.PaymentMethod, p.PaymentTime)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt = p.PaymentTime
	p.UpdatedAt = p.PaymentTime
	return nil
}

// GetByBookingTx is GetByBooking inside a transaction.
func (r *PaymentRepo) GetByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error) {
	return scanPayment(tx.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE booking_id = ?", bookingID))
}

// DeleteByBookingTx removes the payment of one booking.
func (r *PaymentRepo) DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE booking_id = ?", bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByEventTx removes the payments of every booking of an event.
func (r *PaymentRepo) DeleteByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"DELETE p FROM payments p JOIN bookings b ON b.id = p.booking_id WHERE b.event_id = ?", eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a payment by id.
func (r *PaymentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
